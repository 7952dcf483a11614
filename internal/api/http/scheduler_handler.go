package http

import (
	"context"
	"net/http"

	"reservas-backend/internal/jobs"
	"reservas-backend/internal/logger"
)

// Sweeper runs one auto-cancellation pass.
type Sweeper interface {
	RunAutoCancelSweep(ctx context.Context) ([]jobs.SweepOutcome, error)
}

type sweepResponse struct {
	Processed []jobs.SweepOutcome `json:"processed"`
	Error     string              `json:"error,omitempty"`
}

// SchedulerHandler exposes the sweep to an external cron trigger
type SchedulerHandler struct {
	sweeper Sweeper
}

func NewSchedulerHandler(sweeper Sweeper) *SchedulerHandler {
	return &SchedulerHandler{sweeper: sweeper}
}

// AutoCancel handles POST /api/v1/scheduler/auto-cancel
func (h *SchedulerHandler) AutoCancel(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	logger.Info("Auto-cancel sweep triggered", "service", p.Service)

	outcomes, err := h.sweeper.RunAutoCancelSweep(r.Context())
	if err != nil {
		logger.Error("Auto-cancel sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, sweepResponse{Processed: []jobs.SweepOutcome{}, Error: "sweep failed"})
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Processed: outcomes})
}
