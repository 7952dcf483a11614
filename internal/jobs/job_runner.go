package jobs

import (
	"context"
	"time"

	"reservas-backend/internal/config"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/repository"
	"reservas-backend/internal/service"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	reservations repository.ReservationRepository
	outbox       repository.OutboxRepository
	services     *Services
	publisher    notify.EventPublisher
	lease        Lease
	config       *config.Config
	now          func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Cancellation service.CancellationService
	Quotes       service.QuoteService
}

// NewJobRunner creates a new job runner with all dependencies. A nil lease
// lets every sweep run.
func NewJobRunner(
	reservations repository.ReservationRepository,
	outbox repository.OutboxRepository,
	services *Services,
	publisher notify.EventPublisher,
	lease Lease,
	cfg *config.Config,
) *JobRunner {
	if lease == nil {
		lease = NoopLease{}
	}
	return &JobRunner{
		reservations: reservations,
		outbox:       outbox,
		services:     services,
		publisher:    publisher,
		lease:        lease,
		config:       cfg,
		now:          time.Now,
	}
}

// Config exposes the configuration the jobs were built with.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	logger.Info("Starting job", "job", jobName)
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.AutoCancelPending()
	jr.ExpireQuotes()
	jr.DispatchOutbox()
}
