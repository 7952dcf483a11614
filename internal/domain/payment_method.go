package domain

import "time"

// PaymentMethodRecord is a vault entry: a tokenized reference to a card held by
// the processor. Raw card data and one-time tokens are never stored.
type PaymentMethodRecord struct {
	UserID             string    `json:"user_id"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	ProviderCardID     string    `json:"provider_card_id"`
	Brand              string    `json:"brand"`
	Last4              string    `json:"last4"`
	ExpiryMonth        int       `json:"expiry_month"`
	ExpiryYear         int       `json:"expiry_year"`
	TaxID              *string   `json:"tax_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Card is what the processor returns after attaching a token to a customer.
type Card struct {
	ID          string
	Brand       string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
}
