package handlers

import (
	"proxichat/broker/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// FetchQueue hands over, and clears, the messages queued for :userID while offline
func (h *Handler) FetchQueue(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "userID")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	messages, err := h.service.FetchQueue(c.UserContext(), userID)
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
	})
}

// GetMessages returns the conversation between :user1ID and :user2ID
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	user1, ok := paramUUID(c, "user1ID")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	user2, ok := paramUUID(c, "user2ID")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	if !middleware.CanActAs(c, user1) && !middleware.CanActAs(c, user2) {
		return fail(c, fiber.StatusForbidden, "Forbidden - Not a participant of this conversation")
	}

	messages, err := h.service.FetchHistory(c.UserContext(), user1, user2)
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
	})
}
