package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const version = "0.1.0"

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadyCheck
}

func NewHealthHandler(checks map[string]ReadyCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: version,
	})
}

// Ready runs every dependency check and answers 503 if one fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready"}
	status := fiber.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = fiber.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	return c.Status(status).JSON(resp)
}
