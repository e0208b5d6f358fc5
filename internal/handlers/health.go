package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Channel string
	store   Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, channel string, store Pinger) *HealthHandler {
	return &HealthHandler{
		Version: version,
		Channel: channel,
		store:   store,
	}
}

// Root describes the service
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Gastos WhatsApp Bot API",
		"version": h.Version,
		"channel": h.Channel,
	})
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "store unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "OK",
		"service": "Gastos Backend",
		"version": h.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
