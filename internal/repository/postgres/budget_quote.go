package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/repository"

	"github.com/lib/pq"
)

type budgetQuoteRepository struct {
	db *sql.DB
}

func NewBudgetQuoteRepository(db *sql.DB) repository.BudgetQuoteRepository {
	return &budgetQuoteRepository{db: db}
}

func (r *budgetQuoteRepository) Create(ctx context.Context, q *domain.BudgetQuote) error {
	query := `INSERT INTO budget_quotes (message_id, reservation_id, status, price, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $6)
	          RETURNING created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, q.MessageID, q.ReservationID, q.Status, q.Price, q.Notes, time.Now()).
		Scan(&q.CreatedAt, &q.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("quote %s already exists: %w", q.MessageID, domain.ErrConflict)
	}
	return err
}

func (r *budgetQuoteRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.BudgetQuote, error) {
	query := `SELECT message_id, reservation_id, status, price, notes, created_at, updated_at
	          FROM budget_quotes WHERE message_id = $1`
	q := &domain.BudgetQuote{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, messageID).Scan(
		&q.MessageID, &q.ReservationID, &q.Status, &q.Price, &q.Notes, &q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("budget_quote", "quote not found")
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *budgetQuoteRepository) UpdateStatusIfCurrent(ctx context.Context, messageID string, expected, next domain.QuoteStatus) (bool, error) {
	query := `UPDATE budget_quotes SET status = $1, updated_at = $2 WHERE message_id = $3 AND status = $4`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, next, time.Now(), messageID, expected)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *budgetQuoteRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `UPDATE budget_quotes
	          SET status = 'expired', updated_at = NOW()
	          WHERE status = 'pending_approval' AND created_at < $1
	          RETURNING message_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
