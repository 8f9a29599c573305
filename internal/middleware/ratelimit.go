package middleware

import (
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit allows max requests per client IP in a sliding window. storage may be nil, in which
// case counters live in process memory.
func RateLimit(max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperror.New(apperror.KindTooManyRequests, fiber.StatusTooManyRequests,
				"Too many requests from this IP, please try again in an hour!")
		},
	})
}
