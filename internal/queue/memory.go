package queue

import (
	"context"
	"log/slog"
	"sync"

	"proxichat/broker/internal/models"

	"github.com/google/uuid"
)

// MemoryQueue keeps pending messages in process memory. Contents are lost on restart.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]models.Message
	log     *slog.Logger
}

func NewMemoryQueue(log *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[uuid.UUID][]models.Message),
		log:     log,
	}
}

// Enqueue appends msg to the user's pending messages. It never fails.
func (q *MemoryQueue) Enqueue(_ context.Context, msg models.Message, userID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[userID] = append(q.pending[userID], msg)
	q.log.Debug("Enqueued message", "sender_id", msg.SenderID, "receiver_id", userID)
	return nil
}

func (q *MemoryQueue) FetchAndClear(_ context.Context, userID uuid.UUID) ([]models.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	messages, ok := q.pending[userID]
	if !ok {
		return []models.Message{}, nil
	}
	delete(q.pending, userID)
	q.log.Debug("Fetched queued messages", "user_id", userID, "count", len(messages))
	return messages, nil
}
