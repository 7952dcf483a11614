package postgres

import (
	"context"
	"database/sql"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/repository"
)

type reconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) repository.ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

// Create always writes outside any caller transaction: the item must survive
// the rollback of the work it describes.
func (r *reconciliationRepository) Create(ctx context.Context, item *domain.ReconciliationItem) error {
	query := `INSERT INTO reconciliation_items (kind, reservation_id, payment_id, user_id, provider_ref, step, detail, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		item.Kind, item.ReservationID, item.PaymentID, item.UserID, item.ProviderRef, item.Step, item.Detail, item.CreatedAt,
	).Scan(&item.ID)
}
