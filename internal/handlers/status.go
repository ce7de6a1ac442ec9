package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"proxichat/broker/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UpdateStatus sets the presence of :userID. The body is either a JSON
// string ("away") or an object ({"status": "away"}).
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "userID")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	status, err := parseStatus(c.Body())
	if err != nil {
		return h.failWith(c, err)
	}

	if err := h.service.SetStatus(c.UserContext(), userID, status); err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"status": status},
	})
}

func parseStatus(body []byte) (models.PresenceStatus, error) {
	body = bytes.TrimSpace(body)

	var status models.PresenceStatus
	if len(body) > 0 && body[0] == '"' {
		if err := json.Unmarshal(body, &status); err != nil {
			return "", fmt.Errorf("%w: %w", models.ErrInvalidStatus, err)
		}
		return status, nil
	}

	var wrapped struct {
		Status models.PresenceStatus `json:"status"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrInvalidStatus, err)
	}
	if wrapped.Status == "" {
		return "", fmt.Errorf("%w: missing status", models.ErrInvalidStatus)
	}
	return wrapped.Status, nil
}
