package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerName = "stripe"

// StripeOptions configures the processor client. BackendURL is only set in tests.
type StripeOptions struct {
	SecretKey         string
	Timeout           time.Duration
	MaxNetworkRetries int64
	BackendURL        string
}

type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor builds a client with an explicit HTTP timeout and a bounded
// network retry. Retries reuse the request's idempotency key.
func NewStripeProcessor(opts StripeOptions) *StripeProcessor {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: opts.Timeout},
		MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
		LeveledLogger:     logger.WithService("stripe"),
	}
	if opts.BackendURL != "" {
		cfg.URL = stripe.String(opts.BackendURL)
	}
	return &StripeProcessor{api: client.New(opts.SecretKey, stripe.NewBackendsWithConfig(cfg))}
}

func (p *StripeProcessor) FindCustomerByEmail(ctx context.Context, email string) (string, bool, error) {
	ctx, span := startSpan(ctx, "stripe.FindCustomerByEmail")
	defer span.End()
	logger.ExternalServiceCall(providerName, "find_customer")

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.api.Customers.List(params)
	for iter.Next() {
		c := iter.Customer()
		if c != nil && !c.Deleted {
			logger.ExternalServiceResult(providerName, "find_customer", nil, "found", true)
			return c.ID, true, nil
		}
	}
	if err := iter.Err(); err != nil {
		gwErr := gatewayError("find_customer", err)
		recordError(span, gwErr)
		logger.ExternalServiceResult(providerName, "find_customer", gwErr)
		return "", false, gwErr
	}

	logger.ExternalServiceResult(providerName, "find_customer", nil, "found", false)
	return "", false, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, cp CustomerParams) (string, error) {
	ctx, span := startSpan(ctx, "stripe.CreateCustomer")
	defer span.End()
	logger.ExternalServiceCall(providerName, "create_customer", "userID", cp.UserID)

	params := &stripe.CustomerParams{Email: stripe.String(cp.Email)}
	params.Context = ctx
	params.AddMetadata("user_id", cp.UserID)
	if cp.TaxID != nil && *cp.TaxID != "" {
		params.AddMetadata("tax_id", *cp.TaxID)
	}
	if cp.IdempotencyKey != "" {
		params.SetIdempotencyKey(cp.IdempotencyKey)
	}

	c, err := p.api.Customers.New(params)
	if err != nil {
		gwErr := gatewayError("create_customer", err)
		recordError(span, gwErr)
		logger.ExternalServiceResult(providerName, "create_customer", gwErr, "userID", cp.UserID)
		return "", gwErr
	}

	logger.ExternalServiceResult(providerName, "create_customer", nil, "userID", cp.UserID, "customerID", c.ID)
	return c.ID, nil
}

func (p *StripeProcessor) AttachCard(ctx context.Context, customerID, oneTimeToken string) (*domain.Card, error) {
	ctx, span := startSpan(ctx, "stripe.AttachCard")
	defer span.End()
	logger.ExternalServiceCall(providerName, "attach_card", "customerID", customerID)

	params := &stripe.CardParams{
		Customer: stripe.String(customerID),
		Token:    stripe.String(oneTimeToken),
	}
	params.Context = ctx

	card, err := p.api.Cards.New(params)
	if err != nil {
		gwErr := gatewayError("attach_card", err)
		recordError(span, gwErr)
		logger.ExternalServiceResult(providerName, "attach_card", gwErr, "customerID", customerID)
		return nil, gwErr
	}

	logger.ExternalServiceResult(providerName, "attach_card", nil, "customerID", customerID, "cardID", card.ID)
	return &domain.Card{
		ID:          card.ID,
		Brand:       string(card.Brand),
		Last4:       card.Last4,
		ExpiryMonth: int(card.ExpMonth),
		ExpiryYear:  int(card.ExpYear),
	}, nil
}

func (p *StripeProcessor) Refund(ctx context.Context, providerPaymentID string, amount int64, idempotencyKey string) (*domain.Refund, error) {
	ctx, span := startSpan(ctx, "stripe.Refund")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider_id", providerPaymentID), attribute.Int64("payment.amount", amount))
	logger.ExternalServiceCall(providerName, "refund", "paymentID", providerPaymentID, "amount", amount)

	params := &stripe.RefundParams{Amount: stripe.Int64(amount)}
	if strings.HasPrefix(providerPaymentID, "ch_") || strings.HasPrefix(providerPaymentID, "py_") {
		params.Charge = stripe.String(providerPaymentID)
	} else {
		params.PaymentIntent = stripe.String(providerPaymentID)
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		gwErr := gatewayError("refund", err)
		recordError(span, gwErr)
		logger.ExternalServiceResult(providerName, "refund", gwErr, "paymentID", providerPaymentID)
		return nil, gwErr
	}

	logger.ExternalServiceResult(providerName, "refund", nil, "paymentID", providerPaymentID, "refundID", r.ID)
	return &domain.Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)}, nil
}

// gatewayError keeps the processor's own message and identifiers for support.
func gatewayError(op string, err error) *domain.UpstreamGatewayError {
	var se *stripe.Error
	if errors.As(err, &se) {
		payload := map[string]any{"type": string(se.Type)}
		if se.Code != "" {
			payload["code"] = string(se.Code)
		}
		if se.DeclineCode != "" {
			payload["decline_code"] = string(se.DeclineCode)
		}
		if se.Param != "" {
			payload["param"] = se.Param
		}
		return &domain.UpstreamGatewayError{
			Provider:   providerName,
			Operation:  op,
			StatusCode: se.HTTPStatusCode,
			Code:       string(se.Code),
			Message:    se.Msg,
			RequestID:  se.RequestID,
			Payload:    payload,
			Err:        err,
		}
	}
	return &domain.UpstreamGatewayError{Provider: providerName, Operation: op, Message: err.Error(), Err: err}
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("payments").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
