package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/repository"
)

type paymentMethodRepository struct {
	db *sql.DB
}

func NewPaymentMethodRepository(db *sql.DB) repository.PaymentMethodRepository {
	return &paymentMethodRepository{db: db}
}

func (r *paymentMethodRepository) GetByUserID(ctx context.Context, userID string) (*domain.PaymentMethodRecord, error) {
	query := `SELECT user_id, provider_customer_id, provider_card_id, brand, last4, expiry_month, expiry_year, tax_id, created_at, updated_at
	          FROM payment_methods WHERE user_id = $1`
	rec := &domain.PaymentMethodRecord{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.ProviderCustomerID, &rec.ProviderCardID, &rec.Brand, &rec.Last4,
		&rec.ExpiryMonth, &rec.ExpiryYear, &rec.TaxID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("payment_method", "no payment method on file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment method: %w", err)
	}
	return rec, nil
}

// Upsert keys on user_id so concurrent saves for one user converge on a single row.
func (r *paymentMethodRepository) Upsert(ctx context.Context, rec *domain.PaymentMethodRecord) error {
	query := `INSERT INTO payment_methods (user_id, provider_customer_id, provider_card_id, brand, last4, expiry_month, expiry_year, tax_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	          ON CONFLICT (user_id) DO UPDATE SET
	              provider_customer_id = EXCLUDED.provider_customer_id,
	              provider_card_id = EXCLUDED.provider_card_id,
	              brand = EXCLUDED.brand,
	              last4 = EXCLUDED.last4,
	              expiry_month = EXCLUDED.expiry_month,
	              expiry_year = EXCLUDED.expiry_year,
	              tax_id = COALESCE(EXCLUDED.tax_id, payment_methods.tax_id),
	              updated_at = EXCLUDED.updated_at
	          RETURNING created_at, updated_at`
	return conn(ctx, r.db).QueryRowContext(ctx, query,
		rec.UserID, rec.ProviderCustomerID, rec.ProviderCardID, rec.Brand, rec.Last4,
		rec.ExpiryMonth, rec.ExpiryYear, rec.TaxID, time.Now(),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}
