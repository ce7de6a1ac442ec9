package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"proxichat/broker/internal/history"
	"proxichat/broker/internal/models"
	"proxichat/broker/internal/queue"
	"proxichat/broker/internal/registry"

	"github.com/google/uuid"
)

var (
	// ErrHubStopped is returned by every Hub operation once Run has returned
	ErrHubStopped = errors.New("hub is stopped")
	// ErrChannelClosed is returned when sending on a channel that was closed
	ErrChannelClosed = errors.New("channel is closed")
	// ErrChannelFull is returned when a client does not drain its outbound buffer fast enough
	ErrChannelFull = errors.New("channel buffer is full")
)

// Channel is the live outbound side of one connected user
type Channel interface {
	Send(data []byte) error
	Close() error
}

// Hub maintains the live channel of every connected user and routes messages
// between them. All state is owned by the Run loop; exported methods submit
// a command to it and wait for the result.
type Hub struct {
	registry *registry.Registry
	queue    queue.Queue
	history  history.Store
	log      *slog.Logger

	// Live channels mapped by user ID, only touched from Run
	channels map[uuid.UUID]Channel

	commands chan func()
	stopped  chan struct{}
}

// NewHub creates a hub. Run must be started before any other method is called.
func NewHub(reg *registry.Registry, q queue.Queue, h history.Store, log *slog.Logger) *Hub {
	return &Hub{
		registry: reg,
		queue:    q,
		history:  h,
		log:      log,
		channels: make(map[uuid.UUID]Channel),
		commands: make(chan func()),
		stopped:  make(chan struct{}),
	}
}

// Run executes hub commands one at a time until ctx is cancelled, then closes
// every live channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			for userID, ch := range h.channels {
				_ = ch.Close()
				delete(h.channels, userID)
			}
			h.log.Info("Hub stopped")
			return
		case cmd := <-h.commands:
			cmd()
		}
	}
}

// do runs fn on the hub loop and waits for it to finish. ctx only bounds
// the wait for the loop to accept fn; once accepted fn always runs to
// completion before do returns.
func (h *Hub) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case h.commands <- cmd:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

// Connect registers ch as the live channel of userID, replacing and closing
// any previous one, then pushes the roster to everyone.
func (h *Hub) Connect(ctx context.Context, userID uuid.UUID, ch Channel) error {
	return h.do(ctx, func() {
		if existing, ok := h.channels[userID]; ok && existing != ch {
			_ = existing.Close()
			h.log.Info("Replaced existing connection", "user_id", userID)
		}
		h.channels[userID] = ch
		h.registry.SetOnline(userID, true)
		h.broadcastContacts()

		h.log.Info("Client connected", "user_id", userID, "online", len(h.channels))
	})
}

// Disconnect drops the live channel of userID, if any, and marks the user offline
func (h *Hub) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return h.do(ctx, func() {
		h.disconnect(userID)
	})
}

// DisconnectChannel is Disconnect guarded by the channel that is going away.
// A connection that was already replaced by a newer one does nothing.
func (h *Hub) DisconnectChannel(ctx context.Context, userID uuid.UUID, ch Channel) error {
	return h.do(ctx, func() {
		if current, ok := h.channels[userID]; !ok || current != ch {
			h.log.Debug("Ignoring disconnect of stale connection", "user_id", userID)
			return
		}
		h.disconnect(userID)
	})
}

func (h *Hub) disconnect(userID uuid.UUID) {
	if ch, ok := h.channels[userID]; ok {
		delete(h.channels, userID)
		_ = ch.Close()
	}
	h.registry.SetOnline(userID, false)
	h.broadcastContacts()

	h.log.Info("Client disconnected", "user_id", userID, "online", len(h.channels))
}

// Dispatch records msg in history, then pushes it to the receiver when
// connected or queues it otherwise. A failed live push drops the message.
func (h *Hub) Dispatch(ctx context.Context, msg models.Message) error {
	var err error
	if doErr := h.do(ctx, func() {
		err = h.dispatch(ctx, msg)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (h *Hub) dispatch(ctx context.Context, msg models.Message) error {
	if err := h.history.Add(ctx, msg); err != nil {
		return fmt.Errorf("record message %s: %w", msg.ID, err)
	}

	ch, ok := h.channels[msg.ReceiverID]
	if !ok {
		if err := h.queue.Enqueue(ctx, msg, msg.ReceiverID); err != nil {
			return fmt.Errorf("queue message %s: %w", msg.ID, err)
		}
		h.log.Debug("Queued message for offline user", "message_id", msg.ID, "receiver_id", msg.ReceiverID)
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	if err := ch.Send(data); err != nil {
		h.log.Warn("Dropped message on failed push", "message_id", msg.ID, "receiver_id", msg.ReceiverID, "error", err)
		return nil
	}
	h.log.Debug("Delivered message", "message_id", msg.ID, "receiver_id", msg.ReceiverID)
	return nil
}

// BroadcastContacts pushes the unfiltered roster to every connected user
func (h *Hub) BroadcastContacts(ctx context.Context) error {
	return h.do(ctx, h.broadcastContacts)
}

func (h *Hub) broadcastContacts() {
	if len(h.channels) == 0 {
		return
	}

	data, err := json.Marshal(h.registry.AllContacts())
	if err != nil {
		h.log.Error("Failed to encode contact list", "error", err)
		return
	}

	for userID, ch := range h.channels {
		if err := ch.Send(data); err != nil {
			h.log.Warn("Failed to push contact list", "user_id", userID, "error", err)
		}
	}
}

// SendContacts pushes contacts to userID only. Nothing happens when the user
// is not connected.
func (h *Hub) SendContacts(ctx context.Context, contacts []models.Contact, userID uuid.UUID) error {
	return h.do(ctx, func() {
		ch, ok := h.channels[userID]
		if !ok {
			return
		}
		data, err := json.Marshal(contacts)
		if err != nil {
			h.log.Error("Failed to encode contact list", "error", err)
			return
		}
		if err := ch.Send(data); err != nil {
			h.log.Warn("Failed to push contact list", "user_id", userID, "error", err)
		}
	})
}

// IsOnline checks if a user currently holds a live channel
func (h *Hub) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	var online bool
	err := h.do(ctx, func() {
		_, online = h.channels[userID]
	})
	return online, err
}

// OnlineUsers returns the IDs of every connected user
func (h *Hub) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	var users []uuid.UUID
	err := h.do(ctx, func() {
		users = make([]uuid.UUID, 0, len(h.channels))
		for userID := range h.channels {
			users = append(users, userID)
		}
	})
	return users, err
}

// OnlineCount returns the number of connected users
func (h *Hub) OnlineCount(ctx context.Context) (int, error) {
	var count int
	err := h.do(ctx, func() {
		count = len(h.channels)
	})
	return count, err
}
