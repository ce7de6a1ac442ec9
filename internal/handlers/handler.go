package handlers

import (
	"errors"
	"log/slog"

	"proxichat/broker/internal/broker"
	"proxichat/broker/internal/history"
	"proxichat/broker/internal/models"
	"proxichat/broker/internal/queue"
	"proxichat/broker/internal/users"
	"proxichat/broker/internal/utils"
	ws "proxichat/broker/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler serves the broker's HTTP and websocket endpoints
type Handler struct {
	service    *broker.Service
	hub        *ws.Hub
	tokens     *utils.TokenIssuer
	validate   *validator.Validate
	sendBuffer int
	log        *slog.Logger
}

// New creates the handlers. tokens may be nil when authentication is off.
func New(service *broker.Service, hub *ws.Hub, tokens *utils.TokenIssuer, sendBuffer int, log *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		hub:        hub,
		tokens:     tokens,
		validate:   validator.New(),
		sendBuffer: sendBuffer,
		log:        log,
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// failWith maps a domain error onto an HTTP status
func (h *Handler) failWith(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, users.ErrNameTaken):
		return fail(c, fiber.StatusConflict, "Name already taken")
	case errors.Is(err, users.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, broker.ErrInvalidName):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidStatus):
		return fail(c, fiber.StatusBadRequest, "Status must be online, away or offline")
	case errors.Is(err, queue.ErrPersistence), errors.Is(err, history.ErrPersistence):
		h.log.Error("Storage unavailable", "path", c.Path(), "error", err)
		return fail(c, fiber.StatusServiceUnavailable, "Storage unavailable, please retry")
	case errors.Is(err, ws.ErrHubStopped):
		return fail(c, fiber.StatusServiceUnavailable, "Server is shutting down")
	default:
		h.log.Error("Request failed", "path", c.Path(), "error", err)
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
