package handlers

import (
	"context"

	ws "proxichat/broker/internal/websocket"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"success": false,
		"error":   "WebSocket upgrade required",
	})
}

// Chat attaches the connection to the hub as the live channel of :userID
func (h *Handler) Chat(c *websocket.Conn) {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		h.log.Warn("Rejected websocket with invalid user id", "user_id", c.Params("userID"))
		_ = c.Close()
		return
	}

	ctx := context.Background()
	client := ws.NewClient(userID, c, h.hub, h.sendBuffer, h.log)
	if err := h.hub.Connect(ctx, userID, client); err != nil {
		h.log.Error("Failed to connect client", "user_id", userID, "error", err)
		_ = c.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(ctx) // This blocks until connection closes
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(c *fiber.Ctx) error {
	count, err := h.hub.OnlineCount(c.UserContext())
	if err != nil {
		return h.failWith(c, err)
	}
	userIDs, err := h.hub.OnlineUsers(c.UserContext())
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"onlineUsers": count,
			"userIds":     userIDs,
		},
	})
}

// Health reports that the server is up
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Broker is running",
	})
}
