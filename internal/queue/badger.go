package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"proxichat/broker/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	keyPrefix   = "queue:"
	sequenceKey = "seq:queue"
	// sequence numbers leased from badger per round trip
	sequenceBandwidth = 128
	// entries removed per FetchAndClear transaction
	fetchChunkSize = 1000
)

// BadgerQueue stores pending messages in badger under
// "queue:{user_id}:{sequence}". The zero padded sequence keeps a prefix scan
// in insertion order, across restarts too.
type BadgerQueue struct {
	mu  sync.Mutex
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewBadgerQueue(db *badger.DB, log *slog.Logger) (*BadgerQueue, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: lease sequence: %w", ErrPersistence, err)
	}
	return &BadgerQueue{db: db, seq: seq, log: log}, nil
}

// Close returns unused sequence numbers to badger. It does not close the database.
func (q *BadgerQueue) Close() error {
	return q.seq.Release()
}

func (q *BadgerQueue) Enqueue(ctx context.Context, msg models.Message, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", ErrPersistence, err)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(userID, n), value)
	})
	if err != nil {
		return fmt.Errorf("%w: enqueue for %s: %w", ErrPersistence, userID, err)
	}
	q.log.Debug("Enqueued message", "sender_id", msg.SenderID, "receiver_id", userID)
	return nil
}

// FetchAndClear drains the user's entries in chunks, each read and deleted in
// its own transaction so a long queue never exceeds badger's transaction
// limits. When a later chunk fails, the messages already removed are still
// returned and the rest stay queued for the next fetch.
func (q *BadgerQueue) FetchAndClear(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	messages := []models.Message{}
	for {
		chunk, more, err := q.drainChunk(userID)
		messages = append(messages, chunk...)
		if err != nil {
			if len(messages) == 0 {
				return nil, fmt.Errorf("%w: fetch for %s: %w", ErrPersistence, userID, err)
			}
			q.log.Warn("Partial queue drain", "user_id", userID, "fetched", len(messages), "error", err)
			break
		}
		if !more {
			break
		}
	}

	q.log.Debug("Fetched queued messages", "user_id", userID, "count", len(messages))
	return messages, nil
}

// drainChunk removes up to fetchChunkSize entries, fewer when the transaction
// fills up first. more reports whether entries may remain.
func (q *BadgerQueue) drainChunk(userID uuid.UUID) (chunk []models.Message, more bool, err error) {
	err = q.db.Update(func(txn *badger.Txn) error {
		chunk = chunk[:0]
		keys, values, err := scan(txn, userPrefix(userID), fetchChunkSize)
		if err != nil {
			return err
		}
		more = len(keys) == fetchChunkSize
		for i, key := range keys {
			var msg models.Message
			if err := json.Unmarshal(values[i], &msg); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if err := txn.Delete(key); err != nil {
				if errors.Is(err, badger.ErrTxnTooBig) && len(chunk) > 0 {
					more = true
					return nil
				}
				return err
			}
			chunk = append(chunk, msg)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return chunk, more, nil
}

// Entry is a pending message as stored on disk
type Entry struct {
	Key     string
	UserID  uuid.UUID
	Message models.Message
}

// Inspect lists pending entries without removing them. uuid.Nil lists every user.
func Inspect(db *badger.DB, userID uuid.UUID) ([]Entry, error) {
	prefix := []byte(keyPrefix)
	if userID != uuid.Nil {
		prefix = userPrefix(userID)
	}

	var entries []Entry
	err := db.View(func(txn *badger.Txn) error {
		keys, values, err := scan(txn, prefix, 0)
		if err != nil {
			return err
		}
		for i, key := range keys {
			owner, err := ownerOf(string(key))
			if err != nil {
				return err
			}
			var msg models.Message
			if err := json.Unmarshal(values[i], &msg); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			entries = append(entries, Entry{Key: string(key), UserID: owner, Message: msg})
		}
		return nil
	})
	return entries, err
}

// scan reads up to limit entries under prefix in key order, all of them when limit is 0
func scan(txn *badger.Txn, prefix []byte, limit int) ([][]byte, [][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys, values [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && len(keys) == limit {
			break
		}
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, item.KeyCopy(nil))
		values = append(values, value)
	}
	return keys, values, nil
}

func userPrefix(userID uuid.UUID) []byte {
	return []byte(keyPrefix + userID.String() + ":")
}

func entryKey(userID uuid.UUID, n uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", keyPrefix, userID, n))
}

func ownerOf(key string) (uuid.UUID, error) {
	parts := strings.Split(strings.TrimPrefix(key, keyPrefix), ":")
	if len(parts) != 2 {
		return uuid.Nil, fmt.Errorf("malformed queue key %q", key)
	}
	return uuid.Parse(parts[0])
}
