package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const EventReservationStatusChanged = "reservation.status_changed"

// OutboxEvent is written in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID           string          `json:"id"`
	AggregateID  string          `json:"aggregate_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`
	LastError    *string         `json:"last_error,omitempty"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StatusChanged is the payload counterparties consume to learn about a transition.
type StatusChanged struct {
	ReservationID  string            `json:"reservation_id"`
	From           ReservationStatus `json:"from"`
	To             ReservationStatus `json:"to"`
	TriggeredBy    Actor             `json:"triggered_by,omitempty"`
	ClientID       string            `json:"client_id"`
	ProfessionalID string            `json:"professional_id"`
	Reason         string            `json:"reason,omitempty"`
	RefundID       string            `json:"refund_id,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewStatusChangedEvent(res *Reservation, from, to ReservationStatus, by Actor, reason, refundID string, at time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(StatusChanged{
		ReservationID:  res.ID,
		From:           from,
		To:             to,
		TriggeredBy:    by,
		ClientID:       res.ClientID,
		ProfessionalID: res.ProfessionalID,
		Reason:         reason,
		RefundID:       refundID,
		OccurredAt:     at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status change: %w", err)
	}
	return &OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: res.ID,
		EventType:   EventReservationStatusChanged,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
