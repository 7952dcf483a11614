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
	"reservas-backend/internal/timerange"
)

const reservationColumns = `id, modality, status, time_range::text, client_id, professional_id, service,
	price, platform_fee, total, notes, created_at, updated_at`

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	var rangeText string
	err := row.Scan(&res.ID, &res.Modality, &res.Status, &rangeText, &res.ClientID, &res.ProfessionalID, &res.Service,
		&res.Financials.Price, &res.Financials.PlatformFee, &res.Financials.Total, &res.Notes, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// A malformed stored range leaves TimeRange zero; Parse already logged it.
	if r, ok := timerange.Parse(rangeText); ok {
		res.TimeRange = r
	}
	return res, nil
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	logger.EnterMethod("reservationRepository.Create", "reservationID", res.ID, "modality", res.Modality)

	query := `INSERT INTO reservations (id, modality, status, time_range, client_id, professional_id, service,
	          price, platform_fee, total, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4::tstzrange, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	now := time.Now()
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		res.ID, res.Modality, res.Status, timerange.Format(res.TimeRange), res.ClientID, res.ProfessionalID, res.Service,
		res.Financials.Price, res.Financials.PlatformFee, res.Financials.Total, res.Notes, now, now,
	)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.Create", err, "reservationID", res.ID)
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	res.CreatedAt, res.UpdatedAt = now, now

	logger.ExitMethod("reservationRepository.Create", "reservationID", res.ID)
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("reservation", "reservation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation %s: %w", id, err)
	}
	return res, nil
}

func (r *reservationRepository) UpdateStatusIfCurrent(ctx context.Context, id string, expected, next domain.ReservationStatus, note string) (bool, error) {
	logger.EnterMethod("reservationRepository.UpdateStatusIfCurrent", "reservationID", id, "expected", expected, "next", next)

	query := `UPDATE reservations
	          SET status = $1,
	              notes = CASE WHEN $2::text = '' THEN notes ELSE concat_ws(E'\n', NULLIF(notes, ''), $2::text) END,
	              updated_at = $3
	          WHERE id = $4 AND status = $5`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, next, note, time.Now(), id, expected)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.UpdateStatusIfCurrent", err, "reservationID", id)
		return false, fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	logger.ExitMethod("reservationRepository.UpdateStatusIfCurrent", "reservationID", id, "updated", rows == 1)
	return rows == 1, nil
}

func (r *reservationRepository) UpdateFinancials(ctx context.Context, id string, fin domain.Financials) error {
	query := `UPDATE reservations SET price = $1, platform_fee = $2, total = $3, updated_at = $4 WHERE id = $5`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, fin.Price, fin.PlatformFee, fin.Total, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update reservation financials: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NewNotFoundError("reservation", "reservation not found")
	}
	return nil
}

func (r *reservationRepository) ListPendingApprovalBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
	          FROM reservations
	          WHERE status = 'pending_approval' AND created_at < $1
	          ORDER BY created_at`

	logger.DatabaseCall("list_pending_approval", query, "cutoff", cutoff)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, cutoff)
	if err != nil {
		logger.DatabaseResult("list_pending_approval", 0, err)
		return nil, fmt.Errorf("failed to list pending reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.DatabaseResult("list_pending_approval", int64(len(reservations)), nil)
	return reservations, nil
}
