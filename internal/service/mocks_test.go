package service

import (
	"context"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/payments"

	"github.com/stretchr/testify/mock"
)

// fakeTx runs fn inline; commitErrs simulates a failed COMMIT, keyed by the
// 1-based call number. It cannot undo fn's writes; see cancellation_store_test.go
// for rollback behavior against the real store.
type fakeTx struct {
	calls      int
	commitErrs map[int]error
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return f.commitErrs[f.calls]
}

// MockReservationRepo
type MockReservationRepo struct {
	mock.Mock
}

func (m *MockReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}
func (m *MockReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}
func (m *MockReservationRepo) UpdateStatusIfCurrent(ctx context.Context, id string, expected, next domain.ReservationStatus, note string) (bool, error) {
	args := m.Called(ctx, id, expected, next, note)
	return args.Bool(0), args.Error(1)
}
func (m *MockReservationRepo) UpdateFinancials(ctx context.Context, id string, fin domain.Financials) error {
	args := m.Called(ctx, id, fin)
	return args.Error(0)
}
func (m *MockReservationRepo) ListPendingApprovalBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

// MockPaymentRepo
type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) GetApprovedByReservation(ctx context.Context, reservationID string) (*domain.Payment, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}
func (m *MockPaymentRepo) GetApprovedByReservationForUpdate(ctx context.Context, reservationID string) (*domain.Payment, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}
func (m *MockPaymentRepo) MarkRefunded(ctx context.Context, paymentID, providerRefundID string) (bool, error) {
	args := m.Called(ctx, paymentID, providerRefundID)
	return args.Bool(0), args.Error(1)
}

// MockPaymentMethodRepo
type MockPaymentMethodRepo struct {
	mock.Mock
}

func (m *MockPaymentMethodRepo) GetByUserID(ctx context.Context, userID string) (*domain.PaymentMethodRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentMethodRecord), args.Error(1)
}
func (m *MockPaymentMethodRepo) Upsert(ctx context.Context, rec *domain.PaymentMethodRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockBudgetQuoteRepo
type MockBudgetQuoteRepo struct {
	mock.Mock
}

func (m *MockBudgetQuoteRepo) Create(ctx context.Context, quote *domain.BudgetQuote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}
func (m *MockBudgetQuoteRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}
func (m *MockBudgetQuoteRepo) UpdateStatusIfCurrent(ctx context.Context, messageID string, expected, next domain.QuoteStatus) (bool, error) {
	args := m.Called(ctx, messageID, expected, next)
	return args.Bool(0), args.Error(1)
}
func (m *MockBudgetQuoteRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]string), args.Error(1)
}

// MockOutboxRepo
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Insert(ctx context.Context, ev *domain.OutboxEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockOutboxRepo) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	args := m.Called(ctx, limit, maxAttempts)
	return args.Get(0).([]domain.OutboxEvent), args.Error(1)
}
func (m *MockOutboxRepo) MarkDispatched(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}
func (m *MockOutboxRepo) MarkFailed(ctx context.Context, id, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

// MockReconciliationRepo
type MockReconciliationRepo struct {
	mock.Mock
}

func (m *MockReconciliationRepo) Create(ctx context.Context, item *domain.ReconciliationItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// MockProcessor
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) FindCustomerByEmail(ctx context.Context, email string) (string, bool, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *MockProcessor) CreateCustomer(ctx context.Context, params payments.CustomerParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}
func (m *MockProcessor) AttachCard(ctx context.Context, customerID, oneTimeToken string) (*domain.Card, error) {
	args := m.Called(ctx, customerID, oneTimeToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}
func (m *MockProcessor) Refund(ctx context.Context, providerPaymentID string, amount int64, idempotencyKey string) (*domain.Refund, error) {
	args := m.Called(ctx, providerPaymentID, amount, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendReconciliationAlert(ctx context.Context, item *domain.ReconciliationItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}
