package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter limits requests per caller over a sliding window. Callers are
// keyed by owner id when authenticated and by IP otherwise. A nil storage
// keeps counters in process memory.
func RateLimiter(max int, expiration time.Duration, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		max = 20
	}
	if expiration <= 0 {
		expiration = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := UserID(c); id != "" {
				return "user:" + id
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		},
		Storage:           storage,
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}
