package handlers

import (
	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Register creates an account named :name at the location in the body
func (h *Handler) Register(c *fiber.Ctx) error {
	location, err := h.parseLocation(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Register(c.UserContext(), c.Params("name"), location)
	if err != nil {
		return h.failWith(c, err)
	}
	if err := h.attachToken(c, &user); err != nil {
		return h.failWith(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// Login signs in the existing account :name from the location in the body
func (h *Handler) Login(c *fiber.Ctx) error {
	location, err := h.parseLocation(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Login(c.UserContext(), c.Params("name"), location)
	if err != nil {
		return h.failWith(c, err)
	}
	if err := h.attachToken(c, &user); err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

func (h *Handler) parseLocation(c *fiber.Ctx) (geo.Coordinate, error) {
	var location geo.Coordinate
	if err := c.BodyParser(&location); err != nil {
		return geo.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(location); err != nil {
		return geo.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, "Latitude must be within ±90 and longitude within ±180")
	}
	return location, nil
}

// attachToken issues a session token and sets the token cookie when
// authentication is on
func (h *Handler) attachToken(c *fiber.Ctx, user *models.UserResponse) error {
	if h.tokens == nil {
		return nil
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Name)
	if err != nil {
		return err
	}
	user.Token = token

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return nil
}
