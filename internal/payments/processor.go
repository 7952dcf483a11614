// Package payments is the boundary to the external payment processor.
package payments

import (
	"context"

	"reservas-backend/internal/domain"
)

// Processor is the subset of the processor's customer registry, card
// tokenization and refund APIs this service needs. Every mutating call takes
// an idempotency key.
type Processor interface {
	FindCustomerByEmail(ctx context.Context, email string) (customerID string, found bool, err error)
	CreateCustomer(ctx context.Context, params CustomerParams) (customerID string, err error)
	AttachCard(ctx context.Context, customerID, oneTimeToken string) (*domain.Card, error)
	Refund(ctx context.Context, providerPaymentID string, amount int64, idempotencyKey string) (*domain.Refund, error)
}

type CustomerParams struct {
	UserID         string
	Email          string
	TaxID          *string
	IdempotencyKey string
}
