package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessage is returned when an inbound payload cannot be turned into a Message
var ErrInvalidMessage = errors.New("invalid message payload")

// Message represents a direct chat message. It is never mutated once created.
type Message struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	Timestamp  time.Time
	IsRead     bool
}

// wireMessage is the JSON shape exchanged with clients
type wireMessage struct {
	ID         uuid.UUID       `json:"id"`
	SenderID   uuid.UUID       `json:"senderID"`
	ReceiverID uuid.UUID       `json:"receiverID"`
	Content    string          `json:"content"`
	Timestamp  json.RawMessage `json:"timestamp"`
	IsRead     bool            `json:"isRead"`
}

// NewMessage creates an unread message stamped with the current time
func NewMessage(senderID, receiverID uuid.UUID, content string) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

// DecodeMessage parses an inbound frame and checks that all identifiers are set
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.ID == uuid.Nil || msg.SenderID == uuid.Nil || msg.ReceiverID == uuid.Nil {
		return Message{}, fmt.Errorf("%w: missing identifier", ErrInvalidMessage)
	}
	return msg, nil
}

// MarshalJSON encodes the timestamp as seconds since the Unix epoch
func (m Message) MarshalJSON() ([]byte, error) {
	seconds := float64(m.Timestamp.Unix()) + float64(m.Timestamp.Nanosecond())/1e9
	ts, err := json.Marshal(seconds)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  ts,
		IsRead:     m.IsRead,
	})
}

// UnmarshalJSON accepts the timestamp either as epoch seconds or as an ISO-8601 string
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ts, err := decodeTimestamp(wire.Timestamp)
	if err != nil {
		return err
	}
	*m = Message{
		ID:         wire.ID,
		SenderID:   wire.SenderID,
		ReceiverID: wire.ReceiverID,
		Content:    wire.Content,
		Timestamp:  ts,
		IsRead:     wire.IsRead,
	}
	return nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("timestamp is required")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return t.UTC(), nil
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	whole := math.Floor(seconds)
	// microsecond precision survives the float64 round trip for present-day dates
	micros := math.Round((seconds - whole) * 1e6)
	return time.Unix(int64(whole), int64(micros)*int64(time.Microsecond)).UTC(), nil
}
