package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Checker is a dependency checked by the readiness endpoint.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name  string
	check func(ctx context.Context) error
}

// NewChecker adapts a check function into a Checker.
func NewChecker(name string, check func(ctx context.Context) error) Checker {
	return checkFunc{name: name, check: check}
}

func (f checkFunc) Name() string { return f.name }

func (f checkFunc) Check(ctx context.Context) error { return f.check(ctx) }

type HealthHandler struct {
	checkers []Checker
	timeout  time.Duration
}

func NewHealthHandler(checkers ...Checker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		timeout:  3 * time.Second,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now(),
	})
}

func (h *HealthHandler) HandleReady(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	status := fiber.StatusOK
	checks := make(fiber.Map, len(h.checkers))
	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			checks[checker.Name()] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[checker.Name()] = "ok"
	}

	ready := "ready"
	if status != fiber.StatusOK {
		ready = "unavailable"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": ready,
		"checks": checks,
	})
}
