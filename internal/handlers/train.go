package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"signalforge/internal/models"
	"signalforge/internal/monitor"
	"signalforge/internal/training"
)

// TrainHandler triggers holistic training runs and serves training status.
type TrainHandler struct {
	trainer *training.Trainer
	mon     *monitor.Monitor
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(trainer *training.Trainer, mon *monitor.Monitor) *TrainHandler {
	return &TrainHandler{trainer: trainer, mon: mon}
}

// Handle runs POST /train
func (h *TrainHandler) Handle(c *fiber.Ctx) error {
	var req models.TrainRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status": "error",
				"error":  "Invalid request body",
			})
		}
	}

	run, err := h.trainer.Run(c.Context(), req)
	if err != nil {
		if errors.Is(err, training.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":    "error",
				"error":     err.Error(),
				"retryable": true,
			})
		}
		log.Printf("❌ [API] Training run failed: %v", err)
		// The run object still carries the per-phase record of what happened.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"error":     err.Error(),
			"retryable": false,
			"run":       run,
		})
	}

	return c.JSON(fiber.Map{
		"status":             string(run.Status),
		"agentsTrained":      run.AgentsTrained,
		"agentsFailed":       run.AgentsFailed,
		"totalTimeMs":        run.TotalTimeMs,
		"systemQualityDelta": run.QualityDelta(),
		"run":                run,
	})
}

// HandleStatus runs GET /training/status
func (h *TrainHandler) HandleStatus(c *fiber.Ctx) error {
	summary, err := h.mon.Summary(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"error":     "Failed to compute health summary",
			"retryable": true,
		})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"state":   h.trainer.State(),
		"lastRun": h.trainer.LastRun(),
		"health":  summary,
	})
}
