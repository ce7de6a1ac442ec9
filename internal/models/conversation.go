package models

import "github.com/google/uuid"

// ConversationKey identifies the conversation between two users regardless of
// who sent first. Low always sorts before High in string form.
type ConversationKey struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewConversationKey returns the canonical key for the pair (a, b)
func NewConversationKey(a, b uuid.UUID) ConversationKey {
	if a.String() <= b.String() {
		return ConversationKey{Low: a, High: b}
	}
	return ConversationKey{Low: b, High: a}
}

func (k ConversationKey) String() string {
	return k.Low.String() + ":" + k.High.String()
}
