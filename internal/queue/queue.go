//go:generate go run go.uber.org/mock/mockgen -source=queue.go -destination=../mocks/mock_queue.go -package=mocks

// Package queue buffers messages for users who are not connected.
package queue

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
var ErrPersistence = errors.New("offline queue persistence failure")

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Queue holds undelivered messages per user in insertion order.
// FetchAndClear is a destructive hand-off: there is no acknowledgement step.
type Queue interface {
	Enqueue(ctx context.Context, msg models.Message, userID uuid.UUID) error
	FetchAndClear(ctx context.Context, userID uuid.UUID) ([]models.Message, error)
}

// New returns the queue implementation selected by backend. db is only used
// by the badger backend.
func New(backend string, db *badger.DB, log *slog.Logger) (Queue, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryQueue(log), nil
	case BackendBadger:
		if db == nil {
			return nil, fmt.Errorf("queue backend %q requires a badger database", backend)
		}
		return NewBadgerQueue(db, log)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}
