package jobs

import (
	"context"

	"reservas-backend/internal/logger"
)

// ExpireQuotes marks unanswered quotes older than the quote TTL as expired
func (jr *JobRunner) ExpireQuotes() {
	jr.runWithRecovery("ExpireQuotes", func(ctx context.Context) {
		ids, err := jr.services.Quotes.ExpireQuotes(ctx, jr.now())
		if err != nil {
			logger.Error("Failed to expire quotes", "error", err)
			return
		}
		for _, id := range ids {
			logger.Debug("Expired quote", "messageID", id)
		}
	})
}
