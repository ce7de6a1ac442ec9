package routes

import (
	"proxichat/broker/internal/handlers"
	"proxichat/broker/internal/middleware"
	"proxichat/broker/internal/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes. tokens is nil when
// authentication is disabled.
func SetupRoutes(app *fiber.App, h *handlers.Handler, tokens *utils.TokenIssuer) {
	auth := middleware.AuthMiddleware(tokens)

	// Health check (public)
	app.Get("/health", h.Health)

	// Account routes (public)
	users := app.Group("/users")
	users.Post("/register/:name", middleware.AccountRateLimiter(), h.Register)
	users.Post("/login/:name", middleware.AccountRateLimiter(), h.Login)

	// Location and presence
	app.Post("/contacts/sync", auth, middleware.LocationRateLimiter(""), h.SyncContacts)
	app.Put("/status/:userID", auth, middleware.RequireSelf("userID"), middleware.LocationRateLimiter("userID"), h.UpdateStatus)

	// Offline queue and history
	app.Get("/queue/:userID", auth, middleware.RequireSelf("userID"), middleware.ReadRateLimiter("userID"), h.FetchQueue)
	app.Get("/messages/:user1ID/:user2ID", auth, middleware.ReadRateLimiter(""), h.GetMessages)

	// WebSocket route
	app.Get("/chat/:userID", auth, middleware.RequireSelf("userID"), handlers.WebSocketUpgrade, middleware.ConnectRateLimiter("userID"), websocket.New(h.Chat))

	// WebSocket stats (for debugging)
	app.Get("/ws/stats", auth, h.GetWebSocketStats)
}
