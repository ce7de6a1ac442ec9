package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proxichat/broker/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newApp(issuer *utils.TokenIssuer) *fiber.App {
	app := fiber.New()
	app.Get("/users/:userID", AuthMiddleware(issuer), RequireSelf("userID"), func(c *fiber.Ctx) error {
		return c.SendString(GetUserName(c))
	})
	return app
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	req := require.New(t)
	app := newApp(nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))

	req.NoError(err)
	req.Equal(fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_TokenSources(t *testing.T) {
	issuer := utils.NewTokenIssuer("s3cret", time.Hour)
	userID := uuid.New()
	token, err := issuer.GenerateToken(userID, "alice")
	require.NoError(t, err)

	tests := map[string]func(r *http.Request){
		"bearer header": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		"cookie":        func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) },
		"query":         func(r *http.Request) { r.URL.RawQuery = "token=" + token },
	}

	for name, attach := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, "/users/"+userID.String(), nil)
			attach(r)

			resp, err := newApp(issuer).Test(r)

			req.NoError(err)
			req.Equal(fiber.StatusOK, resp.StatusCode)
		})
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	req := require.New(t)
	issuer := utils.NewTokenIssuer("s3cret", time.Hour)
	app := newApp(issuer)
	token, err := issuer.GenerateToken(uuid.New(), "alice")
	req.NoError(err)

	// Given no token
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))
	req.NoError(err)
	req.Equal(fiber.StatusUnauthorized, resp.StatusCode)

	// Given a garbage token
	r := httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(r)
	req.NoError(err)
	req.Equal(fiber.StatusUnauthorized, resp.StatusCode)

	// Given a token of another user
	r = httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(r)
	req.NoError(err)
	req.Equal(fiber.StatusForbidden, resp.StatusCode)

	// Given a malformed user ID
	r = httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(r)
	req.NoError(err)
	req.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func TestRateLimiter_RejectsAboveMax(t *testing.T) {
	req := require.New(t)
	app := fiber.New()
	app.Get("/", RateLimiter(2, time.Minute, ByIP), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		req.NoError(err)
		req.Equal(fiber.StatusNoContent, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	req.NoError(err)
	req.Equal(fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestByUser_BucketsPerUser(t *testing.T) {
	req := require.New(t)
	app := fiber.New()
	app.Get("/queue/:userID", AuthMiddleware(nil), RateLimiter(1, time.Minute, ByUser("userID")), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	alice, bob := uuid.NewString(), uuid.NewString()

	// Given alice used up her budget
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/"+alice, nil))
	req.NoError(err)
	req.Equal(fiber.StatusNoContent, resp.StatusCode)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/queue/"+alice, nil))
	req.NoError(err)
	req.Equal(fiber.StatusTooManyRequests, resp.StatusCode)

	// Then bob, behind the same address, is still served
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/queue/"+bob, nil))
	req.NoError(err)
	req.Equal(fiber.StatusNoContent, resp.StatusCode)
}
