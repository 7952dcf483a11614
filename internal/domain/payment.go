package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment rows are never deleted. A reservation has at most one approved payment.
type Payment struct {
	ID                string        `json:"id"`
	ReservationID     string        `json:"reservation_id"`
	ProviderPaymentID string        `json:"provider_payment_id"`
	Amount            int64         `json:"amount"`
	Status            PaymentStatus `json:"status"`
	ProviderRefundID  *string       `json:"provider_refund_id,omitempty"`
	RefundedAt        *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Refund is the processor's acknowledgement of a reversal.
type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}
