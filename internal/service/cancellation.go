package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/metrics"
	"reservas-backend/internal/payments"
	"reservas-backend/internal/repository"

	"github.com/google/uuid"
)

// maxStatusAttempts bounds the re-reads when a concurrent actor moves the
// reservation between our read and the compare-and-swap.
const maxStatusAttempts = 3

type cancellationService struct {
	tx             repository.Transactor
	reservations   repository.ReservationRepository
	payments       repository.PaymentRepository
	outbox         repository.OutboxRepository
	reconciliation repository.ReconciliationRepository
	processor      payments.Processor
	emailSvc       EmailService
	now            func() time.Time
	newKey         func() string
}

func NewCancellationService(
	tx repository.Transactor,
	reservations repository.ReservationRepository,
	paymentRepo repository.PaymentRepository,
	outbox repository.OutboxRepository,
	reconciliation repository.ReconciliationRepository,
	processor payments.Processor,
	emailSvc EmailService,
) CancellationService {
	return &cancellationService{
		tx:             tx,
		reservations:   reservations,
		payments:       paymentRepo,
		outbox:         outbox,
		reconciliation: reconciliation,
		processor:      processor,
		emailSvc:       emailSvc,
		now:            time.Now,
		newKey:         uuid.NewString,
	}
}

// Cancel refunds the reservation's settled payment and moves it to the
// cancellation terminal for req.TriggeredBy.
//
// A reservation without an approved payment yields a NotFoundError and no
// processor call. Once the refund succeeds the money has moved: any later
// failure is recorded for reconciliation and the call still succeeds. The
// payment flip and the status change commit in separate transactions.
func (s *cancellationService) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := validateCancelRequest(&req); err != nil {
		return nil, err
	}
	logger.EnterMethod("cancellationService.Cancel", "reservationID", req.ReservationID, "triggeredBy", req.TriggeredBy)

	if _, err := s.payments.GetApprovedByReservation(ctx, req.ReservationID); err != nil {
		if domain.IsNotFound(err) {
			metrics.RecordRefund(metrics.RefundNoop)
			logger.Info("No settled payment to refund", "reservationID", req.ReservationID)
		}
		logger.ExitMethodWithError("cancellationService.Cancel", err, "reservationID", req.ReservationID)
		return nil, err
	}

	res, err := s.reservations.GetByID(ctx, req.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := authorizeCancel(res, req); err != nil {
		return nil, err
	}
	if _, err := domain.ValidateCancellation(res.Modality, res.Status, req.TriggeredBy); err != nil {
		logger.Warn("Cancellation refused by state machine", "reservationID", res.ID, "status", res.Status, "error", err)
		return nil, err
	}

	var (
		payment *domain.Payment
		refund  *domain.Refund
		final   domain.ReservationStatus
		step    = "refund"
	)
	// The payment flip commits alone; the status change runs in its own
	// transaction below and never rolls the flip back.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetApprovedByReservationForUpdate(ctx, req.ReservationID)
		if err != nil {
			return err
		}
		payment = p

		r, err := s.processor.Refund(ctx, p.ProviderPaymentID, p.Amount, s.newKey())
		if err != nil {
			return err
		}
		refund = r

		step = "mark_refunded"
		flipped, err := s.payments.MarkRefunded(ctx, p.ID, r.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("payment %s is no longer approved", p.ID)
		}

		step = "commit_refund"
		return nil
	})
	if err != nil {
		if refund == nil {
			if domain.IsNotFound(err) {
				// A concurrent cancellation refunded first.
				metrics.RecordRefund(metrics.RefundNoop)
			} else {
				metrics.RecordRefund(metrics.RefundFailed)
			}
			logger.ExitMethodWithError("cancellationService.Cancel", err, "reservationID", req.ReservationID)
			return nil, err
		}
		s.retryMarkRefunded(ctx, payment, refund)
		return s.recordPartialFailure(ctx, req, payment, refund, step, err), nil
	}

	step = "update_status"
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, from, to, err := s.advanceToCanceled(ctx, res, req, refund.ID)
		if err != nil {
			return err
		}
		final = to

		step = "outbox"
		ev, err := domain.NewStatusChangedEvent(current, from, to, req.TriggeredBy, req.Reason, refund.ID, s.now())
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, ev); err != nil {
			return err
		}

		step = "commit"
		return nil
	})
	if err != nil {
		return s.recordPartialFailure(ctx, req, payment, refund, step, err), nil
	}

	metrics.RecordRefund(metrics.RefundSucceeded)
	logger.ExitMethod("cancellationService.Cancel", "reservationID", req.ReservationID, "status", final, "refundID", refund.ID)
	return &CancelResult{
		ReservationID:  req.ReservationID,
		Status:         final,
		RefundID:       refund.ID,
		RefundedAmount: refund.Amount,
	}, nil
}

// advanceToCanceled compare-and-swaps the reservation into its cancellation
// terminal, re-reading when a concurrent transition won the race.
func (s *cancellationService) advanceToCanceled(ctx context.Context, res *domain.Reservation, req CancelRequest, refundID string) (*domain.Reservation, domain.ReservationStatus, domain.ReservationStatus, error) {
	note := fmt.Sprintf("%s canceled by %s: %s (refund %s)", s.now().UTC().Format(time.RFC3339), req.TriggeredBy, req.Reason, refundID)

	current := res
	for attempt := 1; attempt <= maxStatusAttempts; attempt++ {
		to, err := domain.ValidateCancellation(current.Modality, current.Status, req.TriggeredBy)
		if err != nil {
			return nil, "", "", err
		}
		updated, err := s.reservations.UpdateStatusIfCurrent(ctx, current.ID, current.Status, to, note)
		if err != nil {
			return nil, "", "", err
		}
		if updated {
			return current, current.Status, to, nil
		}

		logger.Warn("Reservation moved during cancellation, re-reading", "reservationID", current.ID, "expected", current.Status, "attempt", attempt)
		current, err = s.reservations.GetByID(ctx, current.ID)
		if err != nil {
			return nil, "", "", err
		}
	}
	return nil, "", "", fmt.Errorf("reservation %s: %w", res.ID, domain.ErrConflict)
}

// retryMarkRefunded flips the payment outside the rolled-back transaction.
// The refund already happened, so the payment must not stay approved.
func (s *cancellationService) retryMarkRefunded(ctx context.Context, payment *domain.Payment, refund *domain.Refund) {
	flipped, err := s.payments.MarkRefunded(context.WithoutCancel(ctx), payment.ID, refund.ID)
	if err != nil {
		logger.Error("Failed to mark refunded payment after rollback", "paymentID", payment.ID, "refundID", refund.ID, "error", err)
		return
	}
	logger.Info("Marked refunded payment after rollback", "paymentID", payment.ID, "refundID", refund.ID, "flipped", flipped)
}

func (s *cancellationService) recordPartialFailure(ctx context.Context, req CancelRequest, payment *domain.Payment, refund *domain.Refund, step string, cause error) *CancelResult {
	pf := &domain.PartialFailureError{
		Operation:     "cancel",
		ReservationID: req.ReservationID,
		PaymentID:     payment.ID,
		RefundID:      refund.ID,
		Step:          step,
		Err:           cause,
	}
	logger.Error("reconciliation required",
		"reservationID", pf.ReservationID,
		"paymentID", pf.PaymentID,
		"refundID", pf.RefundID,
		"step", pf.Step,
		"error", pf.Err,
	)

	item := &domain.ReconciliationItem{
		Kind:          domain.ReconciliationRefundStateStale,
		ReservationID: &pf.ReservationID,
		PaymentID:     &pf.PaymentID,
		ProviderRef:   refund.ID,
		Step:          step,
		Detail:        pf.Error(),
	}
	fileReconciliationItem(ctx, s.reconciliation, s.emailSvc, item)

	metrics.RecordRefund(metrics.RefundPartialState)
	return &CancelResult{
		ReservationID:          req.ReservationID,
		Status:                 domain.CancellationStatusFor(req.TriggeredBy),
		RefundID:               refund.ID,
		RefundedAmount:         refund.Amount,
		ReconciliationRequired: true,
	}
}

// fileReconciliationItem persists and announces an inconsistency. Both steps
// are best effort; the caller's error log is the record of last resort.
func fileReconciliationItem(ctx context.Context, repo repository.ReconciliationRepository, emailSvc EmailService, item *domain.ReconciliationItem) {
	ctx = context.WithoutCancel(ctx)
	metrics.RecordReconciliationItem(string(item.Kind))

	if err := repo.Create(ctx, item); err != nil {
		logger.Error("Failed to persist reconciliation item", "kind", item.Kind, "providerRef", item.ProviderRef, "error", err)
	}
	if emailSvc == nil {
		return
	}
	if err := emailSvc.SendReconciliationAlert(ctx, item); err != nil {
		logger.Warn("Failed to send reconciliation alert", "kind", item.Kind, "error", err)
	}
}

func validateCancelRequest(req *CancelRequest) error {
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.ReservationID == "" {
		return domain.NewValidationError("reservation_id", "is required")
	}
	if req.Reason == "" {
		return domain.NewValidationError("reason", "is required")
	}
	actor, err := domain.ParseActor(string(req.TriggeredBy))
	if err != nil {
		return err
	}
	req.TriggeredBy = actor
	return nil
}

// authorizeCancel: service callers may cancel as any actor; users only as the
// role they hold on the reservation.
func authorizeCancel(res *domain.Reservation, req CancelRequest) error {
	if req.ServiceCaller {
		return nil
	}
	if req.TriggeredBy == domain.ActorSystemTimeout {
		return fmt.Errorf("timeout cancellation requires a service caller: %w", domain.ErrForbidden)
	}
	if req.CallerID == "" || res.ParticipantRole(req.CallerID) != req.TriggeredBy {
		return fmt.Errorf("caller cannot cancel as %s: %w", req.TriggeredBy, domain.ErrForbidden)
	}
	return nil
}
