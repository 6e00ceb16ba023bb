package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/orchestrator"
	"github.com/leakscope/backend/pkg/logger"
)

type TriageHandler struct {
	orch *orchestrator.Orchestrator
}

func NewTriageHandler(orch *orchestrator.Orchestrator) *TriageHandler {
	return &TriageHandler{orch: orch}
}

// RunNow triggers a full triage run and blocks until it finishes. The
// response carries the count of entries routed to a durable sink.
func (h *TriageHandler) RunNow(c *fiber.Ctx) error {
	report, err := h.orch.Run(c.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A triage run is already in progress",
			})
		}
		if errors.Is(err, orchestrator.ErrNoSources) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No sources configured",
			})
		}
		logger.Error("Triage run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Triage run failed",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":        report.ID,
		"status":        report.Status,
		"found":         report.Found,
		"confirmed":     report.Confirmed,
		"needs_review":  report.NeedsReview,
		"rejected":      report.Rejected,
		"source_errors": report.SourceErrors,
		"duration_ms":   report.Duration.Milliseconds(),
	})
}

// Status reports whether a run is executing and summarizes the last one.
func (h *TriageHandler) Status(c *fiber.Ctx) error {
	response := fiber.Map{
		"running": h.orch.Running(),
	}

	if report := h.orch.LastReport(); report != nil {
		response["last_run"] = fiber.Map{
			"run_id":        report.ID,
			"status":        report.Status,
			"started_at":    report.StartedAt,
			"found":         report.Found,
			"source_errors": report.SourceErrors,
			"duration_ms":   report.Duration.Milliseconds(),
		}
	}

	return c.JSON(response)
}
