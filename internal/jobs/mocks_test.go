package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/payments"
	"reservas-backend/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockCancellationService
type MockCancellationService struct {
	mock.Mock
}

func (m *MockCancellationService) Cancel(ctx context.Context, req service.CancelRequest) (*service.CancelResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CancelResult), args.Error(1)
}

// MockQuoteService
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) SendQuote(ctx context.Context, req service.SendQuoteRequest) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}
func (m *MockQuoteService) AcceptQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, messageID, callerID)
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}
func (m *MockQuoteService) RejectQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	args := m.Called(ctx, messageID, callerID)
	return args.Get(0).(*domain.BudgetQuote), args.Error(1)
}
func (m *MockQuoteService) ExpireQuotes(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]string), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev domain.OutboxEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockPublisher) Close() error { return nil }

type fakeLease struct {
	acquired bool
	err      error
	released int
	ttl      time.Duration
}

func (l *fakeLease) TryAcquire(_ context.Context, _ string, ttl time.Duration) (func(), bool, error) {
	l.ttl = ttl
	return func() { l.released++ }, l.acquired, l.err
}

// In-memory repositories for end-to-end sweep tests.

type memReservations struct {
	mu   sync.Mutex
	rows map[string]*domain.Reservation
}

func (m *memReservations) Create(_ context.Context, res *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *memReservations) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("reservation", "reservation not found")
	}
	cp := *res
	return &cp, nil
}

func (m *memReservations) UpdateStatusIfCurrent(_ context.Context, id string, expected, next domain.ReservationStatus, note string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok || res.Status != expected {
		return false, nil
	}
	res.Status = next
	if note != "" {
		res.Notes = note
	}
	return true, nil
}

func (m *memReservations) UpdateFinancials(_ context.Context, id string, fin domain.Financials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Financials = fin
	return nil
}

func (m *memReservations) ListPendingApprovalBefore(_ context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, res := range m.rows {
		if res.Status == domain.ReservationStatusPendingApproval && res.CreatedAt.Before(cutoff) {
			out = append(out, *res)
		}
	}
	return out, nil
}

type memPayments struct {
	mu   sync.Mutex
	rows map[string]*domain.Payment
}

func (m *memPayments) approved(reservationID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ReservationID == reservationID && p.Status == domain.PaymentStatusApproved {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("payment", "no settled payment")
}

func (m *memPayments) GetApprovedByReservation(_ context.Context, reservationID string) (*domain.Payment, error) {
	return m.approved(reservationID)
}

func (m *memPayments) GetApprovedByReservationForUpdate(_ context.Context, reservationID string) (*domain.Payment, error) {
	return m.approved(reservationID)
}

func (m *memPayments) MarkRefunded(_ context.Context, paymentID, providerRefundID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[paymentID]
	if !ok || p.Status != domain.PaymentStatusApproved {
		return false, nil
	}
	p.Status = domain.PaymentStatusRefunded
	p.ProviderRefundID = &providerRefundID
	return true, nil
}

type memOutbox struct {
	mu     sync.Mutex
	events []domain.OutboxEvent
}

func (m *memOutbox) Insert(_ context.Context, ev *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}
func (m *memOutbox) ListPending(context.Context, int, int) ([]domain.OutboxEvent, error) {
	return nil, nil
}
func (m *memOutbox) MarkDispatched(context.Context, []string) error { return nil }
func (m *memOutbox) MarkFailed(context.Context, string, string) error {
	return nil
}

type memReconciliation struct {
	items []domain.ReconciliationItem
}

func (m *memReconciliation) Create(_ context.Context, item *domain.ReconciliationItem) error {
	m.items = append(m.items, *item)
	return nil
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// countingProcessor refunds successfully and records each call.
type countingProcessor struct {
	mu      sync.Mutex
	refunds []int64
}

func (p *countingProcessor) FindCustomerByEmail(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (p *countingProcessor) CreateCustomer(context.Context, payments.CustomerParams) (string, error) {
	return "", nil
}
func (p *countingProcessor) AttachCard(context.Context, string, string) (*domain.Card, error) {
	return nil, nil
}
func (p *countingProcessor) Refund(_ context.Context, _ string, amount int64, _ string) (*domain.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, amount)
	return &domain.Refund{ID: fmt.Sprintf("re_%d", len(p.refunds)), Amount: amount, Status: "succeeded"}, nil
}
