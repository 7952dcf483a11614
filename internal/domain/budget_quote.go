package domain

import "time"

type QuoteStatus string

const (
	QuoteStatusPendingApproval QuoteStatus = "pending_approval"
	QuoteStatusAccepted        QuoteStatus = "accepted"
	QuoteStatusRejected        QuoteStatus = "rejected"
	QuoteStatusExpired         QuoteStatus = "expired"
)

// BudgetQuote links a chat-delivered price quote to the reservation it prices.
type BudgetQuote struct {
	MessageID     string      `json:"message_id"`
	ReservationID string      `json:"reservation_id"`
	Status        QuoteStatus `json:"status"`
	Price         int64       `json:"price"`
	Notes         string      `json:"notes"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
