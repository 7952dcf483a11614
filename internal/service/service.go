package service

import (
	"context"
	"time"

	"reservas-backend/internal/domain"
)

type ReservationService interface {
	CreateReservation(ctx context.Context, req CreateReservationRequest) (*domain.Reservation, error)
	Transition(ctx context.Context, req TransitionRequest) (*domain.Reservation, error)
	Get(ctx context.Context, id, callerID string) (*ReservationView, error)
}

type CancellationService interface {
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
}

type PaymentMethodService interface {
	SaveMethod(ctx context.Context, req SaveMethodRequest) (*domain.PaymentMethodRecord, error)
}

type QuoteService interface {
	SendQuote(ctx context.Context, req SendQuoteRequest) (*domain.BudgetQuote, error)
	AcceptQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error)
	RejectQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error)
	ExpireQuotes(ctx context.Context, now time.Time) ([]string, error)
}

type EmailService interface {
	SendReconciliationAlert(ctx context.Context, item *domain.ReconciliationItem) error
}

type CreateReservationRequest struct {
	Modality       string     `json:"modality"`
	ClientID       string     `json:"client_id"`
	ProfessionalID string     `json:"professional_id"`
	Service        string     `json:"service"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
}

// TransitionRequest moves a reservation forward. CallerID is empty for
// service callers, in which case Actor is taken as given.
type TransitionRequest struct {
	ReservationID string                   `json:"reservation_id"`
	To            domain.ReservationStatus `json:"to"`
	Actor         domain.Actor             `json:"actor"`
	CallerID      string                   `json:"-"`
}

type ReservationView struct {
	Reservation *domain.Reservation `json:"reservation"`
	Display     domain.StatusDisplay `json:"display"`
}

// CancelRequest asks the orchestrator to refund and cancel. ServiceCaller
// marks requests authenticated with a service token.
type CancelRequest struct {
	ReservationID string       `json:"reservation_id"`
	Reason        string       `json:"reason"`
	TriggeredBy   domain.Actor `json:"triggered_by"`
	CallerID      string       `json:"-"`
	ServiceCaller bool         `json:"-"`
}

type CancelResult struct {
	ReservationID          string                   `json:"reservation_id"`
	Status                 domain.ReservationStatus `json:"status"`
	RefundID               string                   `json:"refund_id"`
	RefundedAmount         int64                    `json:"refunded_amount"`
	ReconciliationRequired bool                     `json:"reconciliation_required"`
}

type SaveMethodRequest struct {
	UserID string  `json:"user_id"`
	Token  string  `json:"token"`
	Email  string  `json:"email"`
	TaxID  *string `json:"tax_id,omitempty"`
}

type SendQuoteRequest struct {
	ReservationID string `json:"reservation_id"`
	MessageID     string `json:"message_id"`
	Price         int64  `json:"price"`
	Notes         string `json:"notes"`
	CallerID      string `json:"-"`
}
