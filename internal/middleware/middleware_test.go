package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth map[string]models.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	u, ok := f[token]
	if !ok {
		return models.User{}, apperror.InvalidToken("Invalid token. Please log in again!")
	}
	return u, nil
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := apperror.Normalize(err)
			return c.Status(e.StatusCode).SendString(e.Message)
		},
	})
}

func do(t *testing.T, app *fiber.App, method, target, token string, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

var users = fakeAuth{
	"admin-token": {Name: "Ada", Role: models.RoleAdmin},
	"user-token":  {Name: "Uma", Role: models.RoleUser},
	"lead-token":  {Name: "Leo", Role: models.RoleLeadGuide},
}

func TestProtect(t *testing.T) {
	g := NewGuard(users)
	app := newApp()
	app.Get("/me", g.Protect, func(c *fiber.Ctx) error {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		return c.SendString(u.Name)
	})

	status, body := do(t, app, "GET", "/me", "", "")
	assert.Equal(t, 401, status)
	assert.Contains(t, body, "not logged in")

	status, _ = do(t, app, "GET", "/me", "bogus", "")
	assert.Equal(t, 401, status)

	status, body = do(t, app, "GET", "/me", "user-token", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Uma", body)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", "jwt=admin-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestIsLoggedInNeverFails(t *testing.T) {
	g := NewGuard(users)
	app := newApp()
	app.Get("/", g.IsLoggedIn, func(c *fiber.Ctx) error {
		if u, ok := CurrentUser(c); ok {
			return c.SendString(u.Name)
		}
		return c.SendString("anonymous")
	})

	for token, want := range map[string]string{"": "anonymous", "bogus": "anonymous", "lead-token": "Leo"} {
		status, body := do(t, app, "GET", "/", token, "")
		assert.Equal(t, 200, status)
		assert.Equal(t, want, body)
	}
}

func TestRestrictTo(t *testing.T) {
	g := NewGuard(users)
	app := newApp()
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Delete("/chained", g.Protect, g.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), ok)
	// mounted without Protect in front
	app.Delete("/alone", g.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), ok)

	for _, path := range []string{"/chained", "/alone"} {
		status, body := do(t, app, "DELETE", path, "user-token", "")
		assert.Equal(t, 403, status, path)
		assert.Equal(t, "You do not have permission to perform this action", body)

		status, _ = do(t, app, "DELETE", path, "admin-token", "")
		assert.Equal(t, 200, status, path)

		status, _ = do(t, app, "DELETE", path, "lead-token", "")
		assert.Equal(t, 200, status, path)

		status, _ = do(t, app, "DELETE", path, "", "")
		assert.Equal(t, 401, status, path)
	}
}

func TestSanitize(t *testing.T) {
	app := newApp()
	app.Use(Sanitize())
	app.Post("/echo", func(c *fiber.Ctx) error {
		var got map[string]any
		require.NoError(t, json.Unmarshal(c.Body(), &got))
		got["query"] = c.Request().URI().QueryArgs().String()
		return c.JSON(got)
	})

	status, body := do(t, app, "POST", "/echo?price=10&%24where=1",
		"", `{"email":{"$gt":""},"name":"<script>alert(1)</script>","password":"<pa&ss>","a.b":1,"tags":["<b>"]}`)
	require.Equal(t, 200, status)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, map[string]any{}, got["email"])
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", got["name"])
	assert.Equal(t, "<pa&ss>", got["password"])
	assert.NotContains(t, got, "a.b")
	assert.Equal(t, []any{"&lt;b&gt;"}, got["tags"])
	assert.Equal(t, "price=10", got["query"])

	status, _ = do(t, app, "POST", "/echo", "", `{broken`)
	assert.Equal(t, 400, status)
}

func TestBodyCap(t *testing.T) {
	app := newApp()
	app.Use(BodyCap(16))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	status, _ := do(t, app, "POST", "/", "", `{"a":"b"}`)
	assert.Equal(t, 204, status)

	status, _ = do(t, app, "POST", "/", "", `{"a":"`+strings.Repeat("x", 32)+`"}`)
	assert.Equal(t, 413, status)
}

func TestRateLimit(t *testing.T) {
	app := newApp()
	app.Use("/api", RateLimit(3, time.Hour, nil))
	app.Get("/api/x", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/page", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 3; i++ {
		status, _ := do(t, app, "GET", "/api/x", "", "")
		require.Equal(t, 200, status)
	}
	status, body := do(t, app, "GET", "/api/x", "", "")
	assert.Equal(t, 429, status)
	assert.Contains(t, body, "Too many requests")

	status, _ = do(t, app, "GET", "/page", "", "")
	assert.Equal(t, 200, status)
}

func TestSecurityHeaders(t *testing.T) {
	app := newApp()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "https://*.mapbox.com")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
