package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/storage/sqlite"
	"github.com/leakscope/backend/pkg/logger"
)

type IncidentHandler struct {
	db *sqlite.Client
}

func NewIncidentHandler(db *sqlite.Client) *IncidentHandler {
	return &IncidentHandler{db: db}
}

func (h *IncidentHandler) ListIncidents(c *fiber.Ctx) error {
	status := c.Query("status")
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	incidents, err := h.db.ListIncidents(status, limit)
	if err != nil {
		logger.Error("Failed to list incidents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list incidents",
		})
	}

	items := make([]fiber.Map, 0, len(incidents))
	for _, incident := range incidents {
		items = append(items, fiber.Map{
			"id":          incident.ID,
			"parser":      incident.Parser,
			"type":        incident.Type,
			"source":      incident.Source,
			"status":      incident.Status,
			"description": incident.Description,
			"created_at":  incident.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"incidents": items,
		"count":     len(items),
	})
}

func (h *IncidentHandler) GetTriageRun(c *fiber.Ctx) error {
	id := c.Params("id")

	run, err := h.db.GetTriageRun(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":        run.ID,
		"status":        run.Status,
		"sources":       run.Sources,
		"found":         run.Found,
		"confirmed":     run.Confirmed,
		"needs_review":  run.NeedsReview,
		"rejected":      run.Rejected,
		"source_errors": run.SourceErrors,
		"started_at":    run.StartedAt,
		"duration_ms":   run.DurationMS,
	})
}
