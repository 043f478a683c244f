package handlers

import (
	"github.com/gofiber/fiber/v2"

	"signalforge/internal/harvest"
)

// StatsHandler serves per-harvester run statistics.
type StatsHandler struct {
	coordinator *harvest.Coordinator
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(coordinator *harvest.Coordinator) *StatsHandler {
	return &StatsHandler{coordinator: coordinator}
}

// Handle runs GET /stats
func (h *StatsHandler) Handle(c *fiber.Ctx) error {
	stats, err := h.coordinator.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"error":     "Failed to compute stats",
			"retryable": true,
		})
	}
	return c.JSON(fiber.Map{
		"status":     "ok",
		"harvesters": stats,
	})
}
