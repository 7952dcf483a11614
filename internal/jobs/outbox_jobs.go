package jobs

import (
	"context"

	"reservas-backend/internal/logger"
	"reservas-backend/internal/metrics"
)

// DispatchOutbox publishes undelivered status change events
func (jr *JobRunner) DispatchOutbox() {
	jr.runWithRecovery("DispatchOutbox", func(ctx context.Context) {
		if _, _, err := jr.RunOutboxDispatch(ctx); err != nil {
			logger.Error("Outbox dispatch failed", "error", err)
		}
	})
}

// RunOutboxDispatch delivers one batch. Events that fail stay pending with
// their attempt count bumped until MaxAttempts.
func (jr *JobRunner) RunOutboxDispatch(ctx context.Context) (published, failed int, err error) {
	cfg := jr.config.Outbox
	events, err := jr.outbox.ListPending(ctx, cfg.BatchSize, cfg.MaxAttempts)
	if err != nil {
		return 0, 0, err
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	delivered := make([]string, 0, len(events))
	for _, ev := range events {
		if err := jr.publisher.Publish(ctx, ev); err != nil {
			failed++
			metrics.RecordOutboxDispatch(false)
			logger.Warn("Failed to publish outbox event", "eventID", ev.ID, "attempts", ev.Attempts+1, "error", err)
			if markErr := jr.outbox.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
				logger.Error("Failed to record outbox failure", "eventID", ev.ID, "error", markErr)
			}
			continue
		}
		metrics.RecordOutboxDispatch(true)
		delivered = append(delivered, ev.ID)
	}

	if err := jr.outbox.MarkDispatched(ctx, delivered); err != nil {
		// Delivered events will be re-sent; consumers dedupe on event_id.
		return len(delivered), failed, err
	}

	logger.Info("Outbox batch dispatched", "published", len(delivered), "failed", failed)
	return len(delivered), failed, nil
}
