// Package users persists broker accounts. Accounts are keyed by a unique display name.
package users

import (
	"context"
	"errors"

	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrNameTaken = errors.New("user name already taken")
)

// Store is the account repository used by the broker service
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByName(ctx context.Context, name string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePresence(ctx context.Context, id uuid.UUID, location geo.Coordinate, online bool) error
}
