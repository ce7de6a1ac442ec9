package middleware

import (
	"strings"

	"proxichat/broker/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuthMiddleware validates the JWT token carried by the request. A nil issuer
// turns authentication off and lets every request through.
func AuthMiddleware(issuer *utils.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if issuer == nil {
			return c.Next()
		}

		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized - No token provided",
			})
		}

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized - Invalid token",
			})
		}

		// Store user info in context
		c.Locals("userID", claims.UserID)
		c.Locals("name", claims.Name)

		return c.Next()
	}
}

// tokenFromRequest looks at the Authorization header, then the token cookie,
// then the token query parameter used by websocket clients
func tokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Cookies("token"); token != "" {
		return token
	}
	return c.Query("token")
}

// RequireSelf rejects requests whose :param user ID differs from the
// authenticated user
func RequireSelf(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := uuid.Parse(c.Params(param))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid user ID",
			})
		}
		if !CanActAs(c, userID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Forbidden - Token does not belong to this user",
			})
		}
		return c.Next()
	}
}

// CanActAs reports whether the request may act on behalf of userID. Without
// authentication every request may.
func CanActAs(c *fiber.Ctx, userID uuid.UUID) bool {
	current := GetUserID(c)
	if current == "" {
		return true
	}
	return current == userID.String()
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUserName gets the display name from context
func GetUserName(c *fiber.Ctx) string {
	name, ok := c.Locals("name").(string)
	if !ok {
		return ""
	}
	return name
}
