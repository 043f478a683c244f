package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"signalforge/internal/harvest"
	"signalforge/internal/models"
)

// HarvestHandler exposes harvesting per source type or for all types.
type HarvestHandler struct {
	coordinator *harvest.Coordinator
}

// NewHarvestHandler creates a new harvest handler
func NewHarvestHandler(coordinator *harvest.Coordinator) *HarvestHandler {
	return &HarvestHandler{coordinator: coordinator}
}

// Handle runs POST /harvest
func (h *HarvestHandler) Handle(c *fiber.Ctx) error {
	var req models.HarvestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  "Invalid request body",
		})
	}
	if req.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  "type is required (source type or \"all\")",
		})
	}

	start := time.Now()

	if req.Type == "all" {
		results := h.coordinator.HarvestAll(c.Context(), req.Force)
		var total int
		types := make([]fiber.Map, 0, len(results))
		for _, r := range results {
			entry := fiber.Map{"sourceType": r.SourceType}
			if r.Err != nil {
				entry["status"] = "error"
				entry["error"] = r.Err.Error()
			} else {
				entry["status"] = "ok"
				entry["source"] = sourceLabel(r.Result.FromCache)
				entry["count"] = r.Result.Count
				total += r.Result.Count
			}
			types = append(types, entry)
		}
		return c.JSON(fiber.Map{
			"status":          "ok",
			"count":           total,
			"types":           types,
			"executionTimeMs": time.Since(start).Milliseconds(),
		})
	}

	sourceType, err := models.ParseSourceType(req.Type)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	result, err := h.coordinator.Harvest(c.Context(), sourceType, req.Force)
	if err != nil {
		log.Printf("❌ [API] Harvest %s failed: %v", sourceType, err)
		status := fiber.StatusBadGateway
		retryable := true
		if errors.Is(err, harvest.ErrUnknownSourceType) {
			status = fiber.StatusNotFound
			retryable = false
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    "error",
			"error":     err.Error(),
			"retryable": retryable,
		})
	}

	return c.JSON(fiber.Map{
		"status":          "ok",
		"source":          sourceLabel(result.FromCache),
		"count":           result.Count,
		"executionTimeMs": time.Since(start).Milliseconds(),
	})
}

func sourceLabel(fromCache bool) string {
	if fromCache {
		return "fresh"
	}
	return "live"
}
