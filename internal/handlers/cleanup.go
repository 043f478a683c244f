package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

// CleanupHandler triggers retention cleanup on demand.
type CleanupHandler struct {
	db          *database.DB
	defaultDays int
}

// NewCleanupHandler creates a new cleanup handler
func NewCleanupHandler(db *database.DB, defaultDays int) *CleanupHandler {
	return &CleanupHandler{db: db, defaultDays: defaultDays}
}

// Handle runs POST /cleanup
func (h *CleanupHandler) Handle(c *fiber.Ctx) error {
	var req models.CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status": "error",
				"error":  "Invalid request body",
			})
		}
	}
	days := req.Days
	if days <= 0 {
		days = h.defaultDays
	}

	summary, err := h.db.Cleanup(c.Context(), days)
	if err != nil {
		log.Printf("❌ [API] Cleanup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"error":     "Cleanup failed",
			"retryable": true,
		})
	}

	log.Printf("🧹 [API] Cleanup (%dd): %d records, %d logs deleted", days, summary.RecordsDeleted, summary.LogsDeleted)
	return c.JSON(fiber.Map{
		"status":         "ok",
		"days":           days,
		"recordsDeleted": summary.RecordsDeleted,
		"logsDeleted":    summary.LogsDeleted,
	})
}
