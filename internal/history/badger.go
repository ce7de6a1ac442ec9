package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"proxichat/broker/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	keyPrefix         = "history:"
	sequenceKey       = "seq:history"
	sequenceBandwidth = 128
)

// BadgerStore persists conversations under "history:{low}:{high}:{sequence}"
// so that a prefix scan returns a conversation in append order.
type BadgerStore struct {
	mu  sync.Mutex
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: lease sequence: %w", ErrPersistence, err)
	}
	return &BadgerStore{db: db, seq: seq, log: log}, nil
}

// Close returns unused sequence numbers to badger. It does not close the database.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}

func (s *BadgerStore) Add(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", ErrPersistence, err)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	key := fmt.Sprintf("%s%s:%020d", keyPrefix, models.NewConversationKey(msg.SenderID, msg.ReceiverID), n)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ErrPersistence, msg.ID, err)
	}
	return nil
}

func (s *BadgerStore) History(ctx context.Context, user1, user2 uuid.UUID) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := []byte(keyPrefix + models.NewConversationKey(user1, user2).String() + ":")
	messages := []models.Message{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg models.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, models.NewConversationKey(user1, user2), err)
	}

	s.log.Debug("Read conversation history", "user_id", user1, "peer_id", user2, "count", len(messages))
	return messages, nil
}
