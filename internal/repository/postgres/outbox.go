package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/repository"

	"github.com/lib/pq"
)

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Insert(ctx context.Context, ev *domain.OutboxEvent) error {
	query := `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, ev.ID, ev.AggregateID, ev.EventType, []byte(ev.Payload), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, attempts, last_error, created_at
	          FROM outbox_events
	          WHERE dispatched_at IS NULL AND attempts < $1
	          ORDER BY created_at
	          LIMIT $2`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &ev.Attempts, &ev.LastError, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox_events SET dispatched_at = $1, attempts = attempts + 1, last_error = NULL WHERE id = ANY($2)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, time.Now(), pq.Array(ids))
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	query := `UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, lastError, id)
	return err
}
