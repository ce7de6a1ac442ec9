package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *fiber.Ctx) string

// ByIP counts requests per client address
func ByIP(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

// ByUser counts requests per acting user: the authenticated user, else the
// user named by the route parameter param, else the client address.
// Devices sharing one address then do not drain each other's budget when
// authentication is disabled.
func ByUser(param string) KeyFunc {
	return func(c *fiber.Ctx) string {
		if userID := GetUserID(c); userID != "" {
			return "user:" + userID
		}
		if param != "" {
			if userID := c.Params(param); userID != "" {
				return "user:" + userID
			}
		}
		return ByIP(c)
	}
}

// RateLimiter creates a rate limiting middleware
func RateLimiter(max int, expiration time.Duration, key KeyFunc) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   expiration,
		KeyGenerator: key,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests, please try again later",
			})
		},
	})
}

// AccountRateLimiter guards register and login, where nobody is authenticated yet
func AccountRateLimiter() fiber.Handler {
	return RateLimiter(20, time.Minute, ByIP)
}

// LocationRateLimiter guards contact sync and status changes. Clients sync
// on every position fix, so the budget is per user.
func LocationRateLimiter(param string) fiber.Handler {
	return RateLimiter(60, time.Minute, ByUser(param))
}

// ConnectRateLimiter slows down reconnect loops on the chat socket. Every
// accepted connection replaces the previous one and rebroadcasts the roster.
func ConnectRateLimiter(param string) fiber.Handler {
	return RateLimiter(10, time.Minute, ByUser(param))
}

// ReadRateLimiter guards queue and history reads
func ReadRateLimiter(param string) fiber.Handler {
	return RateLimiter(120, time.Minute, ByUser(param))
}
