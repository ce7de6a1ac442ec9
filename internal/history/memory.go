package history

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"proxichat/broker/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps conversations for the lifetime of the process
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[models.ConversationKey][]models.Message
	log           *slog.Logger
}

func NewMemoryStore(log *slog.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[models.ConversationKey][]models.Message),
		log:           log,
	}
}

func (s *MemoryStore) Add(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NewConversationKey(msg.SenderID, msg.ReceiverID)
	s.conversations[key] = append(s.conversations[key], msg)
	return nil
}

func (s *MemoryStore) History(_ context.Context, user1, user2 uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, ok := s.conversations[models.NewConversationKey(user1, user2)]
	if !ok {
		return []models.Message{}, nil
	}
	return slices.Clone(messages), nil
}
