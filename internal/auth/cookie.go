package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const loggedOutValue = "loggedout"

// SetSessionCookie stores token in an HTTP-only cookie. Secure is set only when secure is true.
func SetSessionCookie(c *fiber.Ctx, token string, ttl time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie overwrites the session cookie with a sentinel that expires almost at once.
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    loggedOutValue,
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// TokenFromRequest returns the bearer token from the Authorization header, falling back to the
// session cookie when allowCookie is set.
func TokenFromRequest(c *fiber.Ctx, allowCookie bool) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if !allowCookie {
		return ""
	}
	token := c.Cookies(CookieName)
	if token == loggedOutValue {
		return ""
	}
	return token
}
