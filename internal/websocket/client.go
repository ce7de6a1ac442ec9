package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"proxichat/broker/internal/models"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Conn is the part of a websocket connection a Client drives
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client represents a WebSocket client connection. It implements Channel.
type Client struct {
	UserID uuid.UUID

	conn Conn
	hub  *Hub
	log  *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client whose outbound buffer holds bufferSize frames
func NewClient(userID uuid.UUID, conn Conn, hub *Hub, bufferSize int, log *slog.Logger) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		hub:    hub,
		log:    log.With("user_id", userID),
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues data for the write pump without blocking
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrChannelFull
	}
}

// Close stops the write pump. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// ReadPump handles incoming messages from the client until the connection
// fails, then detaches the client from the hub.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		if err := c.hub.DisconnectChannel(context.WithoutCancel(ctx), c.UserID, c); err != nil && !errors.Is(err, ErrHubStopped) {
			c.log.Error("Failed to disconnect client", "error", err)
		}
		_ = c.Close()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		msg, err := models.DecodeMessage(data)
		if err != nil {
			c.log.Debug("Dropped malformed frame", "error", err)
			continue
		}
		if msg.SenderID != c.UserID {
			c.log.Warn("Dropped frame with foreign sender", "sender_id", msg.SenderID)
			continue
		}

		if err := c.hub.Dispatch(ctx, msg); err != nil {
			c.log.Error("Failed to dispatch message", "message_id", msg.ID, "error", err)
			if errors.Is(err, ErrHubStopped) || ctx.Err() != nil {
				return
			}
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings
// until the client is closed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("WebSocket write error", "error", err)
				_ = c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
