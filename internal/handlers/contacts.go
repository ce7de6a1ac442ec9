package handlers

import (
	"proxichat/broker/internal/broker"
	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SyncContactsRequest represents the contact sync request body
type SyncContactsRequest struct {
	UserID   uuid.UUID      `json:"userID"`
	Location geo.Coordinate `json:"location"`
	Radius   float64        `json:"radius" validate:"gte=0"`
	Name     *string        `json:"name,omitempty" validate:"omitempty,max=64"`
	Push     bool           `json:"push,omitempty"`
}

// SyncContacts updates the caller's location and returns the contacts within its radius
func (h *Handler) SyncContacts(c *fiber.Ctx) error {
	var req SyncContactsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.UserID == uuid.Nil {
		return fail(c, fiber.StatusBadRequest, "userID is required")
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid location or radius")
	}
	if !middleware.CanActAs(c, req.UserID) {
		return fail(c, fiber.StatusForbidden, "Forbidden - Token does not belong to this user")
	}

	contacts, err := h.service.SyncContacts(c.UserContext(), broker.SyncRequest{
		UserID:   req.UserID,
		Name:     req.Name,
		Location: req.Location,
		Radius:   req.Radius,
		Push:     req.Push,
	})
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    contacts,
	})
}
