package domain

import "time"

type ReconciliationKind string

const (
	ReconciliationRefundStateStale ReconciliationKind = "refund_state_stale"
	ReconciliationVaultNotSaved    ReconciliationKind = "vault_not_saved"
)

// ReconciliationItem is an inconsistency between the processor and local state
// awaiting manual resolution.
type ReconciliationItem struct {
	ID            int64              `json:"id"`
	Kind          ReconciliationKind `json:"kind"`
	ReservationID *string            `json:"reservation_id,omitempty"`
	PaymentID     *string            `json:"payment_id,omitempty"`
	UserID        *string            `json:"user_id,omitempty"`
	ProviderRef   string             `json:"provider_ref"`
	Step          string             `json:"step"`
	Detail        string             `json:"detail"`
	CreatedAt     time.Time          `json:"created_at"`
}
