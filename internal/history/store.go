//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_history.go -package=mocks

// Package history keeps the append-only log of every conversation between two users.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"proxichat/broker/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrPersistence is returned when the backing store cannot be reached
var ErrPersistence = errors.New("history persistence failure")

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Store records messages per conversation. History(a, b) and History(b, a)
// return the same sequence.
type Store interface {
	Add(ctx context.Context, msg models.Message) error
	History(ctx context.Context, user1, user2 uuid.UUID) ([]models.Message, error)
}

// New returns the store implementation selected by backend
func New(backend string, db *badger.DB, log *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(log), nil
	case BackendBadger:
		if db == nil {
			return nil, fmt.Errorf("history backend %q requires a badger database", backend)
		}
		return NewBadgerStore(db, log)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
