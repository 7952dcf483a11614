package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/repository"
)

const paymentColumns = `id, reservation_id, provider_payment_id, amount, status, provider_refund_id, refunded_at, created_at, updated_at`

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetApprovedByReservation(ctx context.Context, reservationID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 AND status = 'approved'`
	return r.getApproved(ctx, "paymentRepository.GetApprovedByReservation", query, reservationID)
}

func (r *paymentRepository) GetApprovedByReservationForUpdate(ctx context.Context, reservationID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 AND status = 'approved' FOR UPDATE`
	return r.getApproved(ctx, "paymentRepository.GetApprovedByReservationForUpdate", query, reservationID)
}

func (r *paymentRepository) getApproved(ctx context.Context, method, query, reservationID string) (*domain.Payment, error) {
	logger.EnterMethod(method, "reservationID", reservationID)

	p := &domain.Payment{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, reservationID).Scan(
		&p.ID, &p.ReservationID, &p.ProviderPaymentID, &p.Amount, &p.Status,
		&p.ProviderRefundID, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod(method, "reservationID", reservationID, "found", false)
		return nil, domain.NewNotFoundError("payment", "no settled payment")
	}
	if err != nil {
		logger.ExitMethodWithError(method, err, "reservationID", reservationID)
		return nil, fmt.Errorf("failed to load approved payment: %w", err)
	}

	logger.ExitMethod(method, "reservationID", reservationID, "paymentID", p.ID)
	return p, nil
}

// MarkRefunded flips an approved payment to refunded. It reports false when the
// payment was no longer approved.
func (r *paymentRepository) MarkRefunded(ctx context.Context, paymentID, providerRefundID string) (bool, error) {
	query := `UPDATE payments
	          SET status = 'refunded', provider_refund_id = $1, refunded_at = $2, updated_at = $2
	          WHERE id = $3 AND status = 'approved'`

	logger.DatabaseCall("mark_refunded", query, "paymentID", paymentID)
	result, err := conn(ctx, r.db).ExecContext(ctx, query, providerRefundID, time.Now(), paymentID)
	if err != nil {
		logger.DatabaseResult("mark_refunded", 0, err, "paymentID", paymentID)
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	logger.DatabaseResult("mark_refunded", rows, nil, "paymentID", paymentID)
	return rows == 1, nil
}
