package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reservas-backend/internal/config"
	"reservas-backend/internal/domain"
	"reservas-backend/internal/jobs"
	"reservas-backend/internal/security"
	"reservas-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type MockReservationService struct{ mock.Mock }

func (m *MockReservationService) CreateReservation(ctx context.Context, req service.CreateReservationRequest) (*domain.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) Transition(ctx context.Context, req service.TransitionRequest) (*domain.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) Get(ctx context.Context, id, callerID string) (*service.ReservationView, error) {
	args := m.Called(ctx, id, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReservationView), args.Error(1)
}

type MockCancellationService struct{ mock.Mock }

func (m *MockCancellationService) Cancel(ctx context.Context, req service.CancelRequest) (*service.CancelResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CancelResult), args.Error(1)
}

type MockPaymentMethodService struct{ mock.Mock }

func (m *MockPaymentMethodService) SaveMethod(ctx context.Context, req service.SaveMethodRequest) (*domain.PaymentMethodRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentMethodRecord), args.Error(1)
}

type MockQuoteService struct{ mock.Mock }

func (m *MockQuoteService) SendQuote(ctx context.Context, req service.SendQuoteRequest) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}

func (m *MockQuoteService) AcceptQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, messageID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}

func (m *MockQuoteService) RejectQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, messageID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}

func (m *MockQuoteService) ExpireQuotes(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]string), args.Error(1)
}

type MockSweeper struct{ mock.Mock }

func (m *MockSweeper) RunAutoCancelSweep(ctx context.Context) ([]jobs.SweepOutcome, error) {
	args := m.Called(ctx)
	return args.Get(0).([]jobs.SweepOutcome), args.Error(1)
}

// fakeVerifier accepts the ID tokens it knows about.
type fakeVerifier map[string]string

func (f fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*security.Identity, error) {
	uid, ok := f[idToken]
	if !ok {
		return nil, security.ErrInvalidToken
	}
	return &security.Identity{UID: uid}, nil
}

type testServer struct {
	router        http.Handler
	reservations  *MockReservationService
	cancellations *MockCancellationService
	methods       *MockPaymentMethodService
	quotes        *MockQuoteService
	sweeper       *MockSweeper
	serviceToken  string
}

func newTestServer(t *testing.T, limits config.RateLimitConfig) *testServer {
	t.Helper()
	ts := &testServer{
		reservations:  new(MockReservationService),
		cancellations: new(MockCancellationService),
		methods:       new(MockPaymentMethodService),
		quotes:        new(MockQuoteService),
		sweeper:       new(MockSweeper),
	}
	tm := security.NewTokenManager(testSecret)
	token, err := tm.GenerateServiceToken("cronjob", nil, time.Minute)
	require.NoError(t, err)
	ts.serviceToken = token

	if limits.RequestsPerSecond == 0 {
		limits = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}
	}
	ts.router = NewRouter(Handlers{
		Reservations:   NewReservationHandler(ts.reservations, ts.cancellations),
		PaymentMethods: NewPaymentMethodHandler(ts.methods),
		Quotes:         NewQuoteHandler(ts.quotes),
		Scheduler:      NewSchedulerHandler(ts.sweeper),
	}, NewAuthMiddleware(fakeVerifier{"tok-client": "client-1", "tok-pro": "pro-1"}, tm), NewRateLimiter(limits))
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCancelReservation(t *testing.T) {
	const body = `{"reservation_id":"42","reason":"ya no lo necesito","triggered_by":"client"}`

	t.Run("Success as client", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.cancellations.On("Cancel", mock.Anything, service.CancelRequest{
			ReservationID: "42", Reason: "ya no lo necesito", TriggeredBy: domain.ActorClient, CallerID: "client-1",
		}).Return(&service.CancelResult{ReservationID: "42", Status: domain.ReservationStatusCanceledClient, RefundID: "re_1", RefundedAmount: 1000}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", "tok-client", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		got := decodeEnvelope(t, rec)
		assert.Equal(t, true, got["success"])
		assert.Equal(t, "re_1", got["data"].(map[string]any)["refund_id"])
		ts.cancellations.AssertExpectations(t)
	})

	t.Run("Nothing to refund is success", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.cancellations.On("Cancel", mock.Anything, mock.Anything).
			Return(nil, domain.NewNotFoundError("payment", "no settled payment"))

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", "tok-client", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	})

	t.Run("Service caller", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.cancellations.On("Cancel", mock.Anything, mock.MatchedBy(func(req service.CancelRequest) bool {
			return req.ServiceCaller && req.CallerID == "" && req.TriggeredBy == domain.ActorSystemTimeout
		})).Return(&service.CancelResult{ReservationID: "42", Status: domain.ReservationStatusCanceledClient}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", ts.serviceToken,
			`{"reservation_id":"42","reason":"timeout","triggered_by":"system_timeout"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.cancellations.AssertExpectations(t)
	})

	t.Run("Processor rejection", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.cancellations.On("Cancel", mock.Anything, mock.Anything).
			Return(nil, &domain.UpstreamGatewayError{Provider: "stripe", Operation: "refund", StatusCode: 400, Message: "Charge ch_1 has already been refunded."})

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", "tok-client", body)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Charge ch_1 has already been refunded."}`, rec.Body.String())
	})

	t.Run("Missing token", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", "", body)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		ts.cancellations.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	t.Run("Malformed body", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})

		rec := ts.do(http.MethodPost, "/api/v1/reservations/cancel", "tok-client", `{"reservation_id":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, decodeEnvelope(t, rec)["success"])
	})
}

func TestAutoCancelSweepEndpoint(t *testing.T) {
	t.Run("Requires service token", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})

		rec := ts.do(http.MethodPost, "/api/v1/scheduler/auto-cancel", "tok-client", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		ts.sweeper.AssertNotCalled(t, "RunAutoCancelSweep", mock.Anything)
	})

	t.Run("Reports outcomes", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.sweeper.On("RunAutoCancelSweep", mock.Anything).Return([]jobs.SweepOutcome{
			{ID: "42", Success: true},
			{ID: "43", Success: false, Error: "no settled payment"},
		}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/scheduler/auto-cancel", ts.serviceToken, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"processed":[{"id":"42","success":true},{"id":"43","success":false,"error":"no settled payment"}]}`, rec.Body.String())
	})

	t.Run("Sweep failure", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.sweeper.On("RunAutoCancelSweep", mock.Anything).Return([]jobs.SweepOutcome(nil), errors.New("db down"))

		rec := ts.do(http.MethodPost, "/api/v1/scheduler/auto-cancel", ts.serviceToken, "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"processed":[],"error":"sweep failed"}`, rec.Body.String())
	})
}

func TestSavePaymentMethod(t *testing.T) {
	t.Run("Defaults to caller", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.methods.On("SaveMethod", mock.Anything, service.SaveMethodRequest{UserID: "client-1", Token: "tok_visa", Email: "a@example.com"}).
			Return(&domain.PaymentMethodRecord{UserID: "client-1", ProviderCustomerID: "cus_1", ProviderCardID: "card_1", Brand: "Visa", Last4: "4242"}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/payment-methods", "tok-client", `{"token":"tok_visa","email":"a@example.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeEnvelope(t, rec)["success"])
		ts.methods.AssertExpectations(t)
	})

	t.Run("Other user forbidden", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})

		rec := ts.do(http.MethodPost, "/api/v1/payment-methods", "tok-client", `{"user_id":"someone-else","token":"tok_visa","email":"a@example.com"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		ts.methods.AssertNotCalled(t, "SaveMethod", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.methods.On("SaveMethod", mock.Anything, mock.Anything).Return(nil, domain.NewValidationError("token", "is required"))

		rec := ts.do(http.MethodPost, "/api/v1/payment-methods", "tok-client", `{"email":"a@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"validation failed: token: is required"}`, rec.Body.String())
	})

	t.Run("Card saved remotely only", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.methods.On("SaveMethod", mock.Anything, mock.Anything).
			Return(nil, &domain.PartialFailureError{Operation: "save_payment_method", UserID: "client-1", Step: "persist", Err: errors.New("db down")})

		rec := ts.do(http.MethodPost, "/api/v1/payment-methods", "tok-client", `{"token":"tok_visa","email":"a@example.com"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec)["error"], "saved at the payment processor")
	})
}

func TestTransitionReservation(t *testing.T) {
	t.Run("User acts as participant", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.reservations.On("Transition", mock.Anything, service.TransitionRequest{
			ReservationID: "42", To: domain.ReservationStatusOnRoute, CallerID: "pro-1",
		}).Return(&domain.Reservation{ID: "42", Status: domain.ReservationStatusOnRoute}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/reservations/42/transitions", "tok-pro", `{"to":"on_route"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		ts.reservations.AssertExpectations(t)
	})

	t.Run("Guard violation", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.reservations.On("Transition", mock.Anything, mock.Anything).Return(nil, &domain.InvalidTransitionError{
			From: domain.ReservationStatusConfirmed, To: domain.ReservationStatusOnRoute, Modality: "scheduled", Reason: "not allowed",
		})

		rec := ts.do(http.MethodPost, "/api/v1/reservations/42/transitions", "tok-pro", `{"to":"on_route"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestReservationEndpoints(t *testing.T) {
	t.Run("Create requires participant", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})

		rec := ts.do(http.MethodPost, "/api/v1/reservations", "tok-client",
			`{"modality":"instant","client_id":"someone","professional_id":"pro-1","service":"plomeria"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Create", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.reservations.On("CreateReservation", mock.Anything, mock.MatchedBy(func(req service.CreateReservationRequest) bool {
			return req.ClientID == "client-1" && req.Modality == "instant"
		})).Return(&domain.Reservation{ID: "r1", Status: domain.ReservationStatusDraft}, nil)

		rec := ts.do(http.MethodPost, "/api/v1/reservations", "tok-client",
			`{"modality":"instant","client_id":"client-1","professional_id":"pro-1","service":"plomeria"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("Get not found", func(t *testing.T) {
		ts := newTestServer(t, config.RateLimitConfig{})
		ts.reservations.On("Get", mock.Anything, "nope", "client-1").Return(nil, domain.NewNotFoundError("reservation", ""))

		rec := ts.do(http.MethodGet, "/api/v1/reservations/nope", "tok-client", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQuoteEndpoints(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.quotes.On("AcceptQuote", mock.Anything, "m1", "client-1").Return(&domain.BudgetQuote{MessageID: "m1", Status: domain.QuoteStatusAccepted}, nil)
	ts.quotes.On("RejectQuote", mock.Anything, "m2", "client-1").Return(nil, fmt.Errorf("quote m2: %w", domain.ErrConflict))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/quotes/m1/accept", "tok-client", "").Code)
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/v1/quotes/m2/reject", "tok-client", "").Code)
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})

	rec := ts.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodGet, "/health", "", "").Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("reason", "is required"), http.StatusBadRequest},
		{"forbidden", fmt.Errorf("nope: %w", domain.ErrForbidden), http.StatusForbidden},
		{"not found", domain.NewNotFoundError("payment", "no settled payment"), http.StatusNotFound},
		{"conflict", fmt.Errorf("lost race: %w", domain.ErrConflict), http.StatusConflict},
		{"transition", &domain.InvalidTransitionError{}, http.StatusConflict},
		{"gateway", &domain.UpstreamGatewayError{Message: "declined"}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := errorStatus(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
