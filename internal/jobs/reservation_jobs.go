package jobs

import (
	"context"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/metrics"
	"reservas-backend/internal/service"
)

const autoCancelLeaseKey = "lease:auto-cancel-pending"

// autoCancelLeaseTTL covers one capped run with room to spare; a crashed
// holder blocks later sweeps only until it expires.
const autoCancelLeaseTTL = 2 * jobTimeout

// SweepOutcome is the per-reservation result of one auto-cancel run.
type SweepOutcome struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AutoCancelPending cancels reservations left in pending approval past the timeout
func (jr *JobRunner) AutoCancelPending() {
	jr.runWithRecovery("AutoCancelPending", func(ctx context.Context) {
		if _, err := jr.RunAutoCancelSweep(ctx); err != nil {
			logger.Error("Auto-cancel sweep failed", "error", err)
		}
	})
}

// RunAutoCancelSweep drives the cancellation service for every stale pending
// reservation. One failure never aborts the batch.
func (jr *JobRunner) RunAutoCancelSweep(ctx context.Context) ([]SweepOutcome, error) {
	release, acquired, err := jr.lease.TryAcquire(ctx, autoCancelLeaseKey, autoCancelLeaseTTL)
	switch {
	case err != nil:
		logger.Warn("Sweep lease unavailable, running without it", "error", err)
	case !acquired:
		logger.Info("Another auto-cancel sweep holds the lease, skipping")
		return []SweepOutcome{}, nil
	default:
		defer release()
	}

	cutoff := jr.now().Add(-jr.config.ApprovalTimeout())
	pending, err := jr.reservations.ListPendingApprovalBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	reason := jr.config.Reservations.AutoCancelReason
	outcomes := make([]SweepOutcome, 0, len(pending))
	failures := 0
	for _, res := range pending {
		outcome := SweepOutcome{ID: res.ID, Success: true}

		result, err := jr.services.Cancellation.Cancel(ctx, service.CancelRequest{
			ReservationID: res.ID,
			Reason:        reason,
			TriggeredBy:   domain.ActorSystemTimeout,
			ServiceCaller: true,
		})
		if err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
			failures++
			logger.Warn("Auto-cancel failed", "reservationID", res.ID, "error", err)
		} else if result.ReconciliationRequired {
			logger.Warn("Auto-cancel refunded but needs reconciliation", "reservationID", res.ID, "refundID", result.RefundID)
		}

		metrics.RecordSweepOutcome(outcome.Success)
		outcomes = append(outcomes, outcome)
	}

	logger.Info("Auto-cancel sweep finished",
		"cutoff", cutoff.Format(time.RFC3339),
		"count", len(outcomes),
		"failures", failures)
	return outcomes, nil
}
