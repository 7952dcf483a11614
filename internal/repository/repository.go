package repository

import (
	"context"
	"time"

	"reservas-backend/internal/domain"
)

// Transactor runs fn inside a single database transaction carried by ctx.
// Repository calls made with the ctx passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	// UpdateStatusIfCurrent moves id from expected to next and appends note to the
	// audit trail. It reports false when the row was not in expected.
	UpdateStatusIfCurrent(ctx context.Context, id string, expected, next domain.ReservationStatus, note string) (bool, error)
	UpdateFinancials(ctx context.Context, id string, fin domain.Financials) error
	ListPendingApprovalBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
}

type PaymentRepository interface {
	GetApprovedByReservation(ctx context.Context, reservationID string) (*domain.Payment, error)
	// GetApprovedByReservationForUpdate locks the approved row until the surrounding transaction ends.
	GetApprovedByReservationForUpdate(ctx context.Context, reservationID string) (*domain.Payment, error)
	MarkRefunded(ctx context.Context, paymentID, providerRefundID string) (bool, error)
}

type PaymentMethodRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.PaymentMethodRecord, error)
	Upsert(ctx context.Context, rec *domain.PaymentMethodRecord) error
}

type BudgetQuoteRepository interface {
	Create(ctx context.Context, quote *domain.BudgetQuote) error
	GetByMessageID(ctx context.Context, messageID string) (*domain.BudgetQuote, error)
	UpdateStatusIfCurrent(ctx context.Context, messageID string, expected, next domain.QuoteStatus) (bool, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, ev *domain.OutboxEvent) error
	ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, id, lastError string) error
}

type ReconciliationRepository interface {
	Create(ctx context.Context, item *domain.ReconciliationItem) error
}
