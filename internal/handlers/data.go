package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

// DataHandler serves persisted harvested records.
type DataHandler struct {
	db *database.DB
}

// NewDataHandler creates a new data handler
func NewDataHandler(db *database.DB) *DataHandler {
	return &DataHandler{db: db}
}

// Handle runs GET /data/:sourceType
func (h *DataHandler) Handle(c *fiber.Ctx) error {
	sourceType, err := models.ParseSourceType(c.Params("sourceType"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	query := database.RecordQuery{
		SourceType: sourceType,
		Limit:      parseIntQuery(c, "limit", 100),
	}
	if hours := parseIntQuery(c, "max_age_hours", 0); hours > 0 {
		query.MaxAge = time.Duration(hours) * time.Hour
	}
	if raw := c.Query("min_score"); raw != "" {
		if score, err := strconv.ParseFloat(raw, 64); err == nil {
			query.MinScore = score
		}
	}

	records, err := h.db.QueryRecords(c.Context(), query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"error":     "Failed to query records",
			"retryable": true,
		})
	}

	return c.JSON(fiber.Map{
		"status":     "ok",
		"sourceType": sourceType,
		"count":      len(records),
		"data":       records,
	})
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return defaultVal
}
