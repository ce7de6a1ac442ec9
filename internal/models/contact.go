package models

import (
	"proxichat/broker/internal/geo"

	"github.com/google/uuid"
)

// Contact is a read-only projection of another user as seen by the registry.
// Distance is only set in radius-filtered views.
type Contact struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
	IsOnline bool           `json:"isOnline"`
	Distance *float64       `json:"distance,omitempty"`
}
