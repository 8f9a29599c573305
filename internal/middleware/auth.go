package middleware

import (
	"context"
	"slices"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/gofiber/fiber/v2"
)

const userKey = "user"

// Authenticator resolves a session token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// Guard gates routes on the caller's identity and role.
type Guard struct {
	auth Authenticator
}

func NewGuard(a Authenticator) *Guard {
	return &Guard{auth: a}
}

// Protect requires a valid session from the Authorization header or the session cookie.
func (g *Guard) Protect(c *fiber.Ctx) error {
	if _, err := g.resolve(c); err != nil {
		return err
	}
	return c.Next()
}

// IsLoggedIn attaches the user when a valid session is present and never fails.
func (g *Guard) IsLoggedIn(c *fiber.Ctx) error {
	if _, ok := CurrentUser(c); !ok {
		if token := auth.TokenFromRequest(c, true); token != "" {
			if user, err := g.auth.Authenticate(c.UserContext(), token); err == nil {
				c.Locals(userKey, user)
			}
		}
	}
	return c.Next()
}

// RestrictTo only lets the given roles through. It resolves the identity itself when no earlier
// middleware did, so it is safe to mount on its own.
func (g *Guard) RestrictTo(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.resolve(c)
		if err != nil {
			return err
		}
		if !slices.Contains(roles, user.Role) {
			return apperror.Forbidden("You do not have permission to perform this action")
		}
		return c.Next()
	}
}

func (g *Guard) resolve(c *fiber.Ctx) (models.User, error) {
	if user, ok := CurrentUser(c); ok {
		return user, nil
	}
	user, err := g.auth.Authenticate(c.UserContext(), auth.TokenFromRequest(c, true))
	if err != nil {
		return models.User{}, err
	}
	c.Locals(userKey, user)
	return user, nil
}

// CurrentUser returns the identity attached by the guard, if any.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(userKey).(models.User)
	return user, ok
}
