package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"reservas-backend/internal/logger"
	"reservas-backend/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, falling back to db.
func conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

type Store struct {
	db *sql.DB
	repository.ReservationRepository
	repository.PaymentRepository
	repository.PaymentMethodRepository
	repository.BudgetQuoteRepository
	repository.OutboxRepository
	repository.ReconciliationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                       db,
		ReservationRepository:    NewReservationRepository(db),
		PaymentRepository:        NewPaymentRepository(db),
		PaymentMethodRepository:  NewPaymentMethodRepository(db),
		BudgetQuoteRepository:    NewBudgetQuoteRepository(db),
		OutboxRepository:         NewOutboxRepository(db),
		ReconciliationRepository: NewReconciliationRepository(db),
	}
}

// WithinTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ repository.Transactor = (*Store)(nil)
