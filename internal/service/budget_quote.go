package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/repository"
	"reservas-backend/internal/utils"
)

type quoteService struct {
	tx             repository.Transactor
	quotes         repository.BudgetQuoteRepository
	reservations   repository.ReservationRepository
	outbox         repository.OutboxRepository
	platformFeeBps int64
	ttl            time.Duration
	now            func() time.Time
}

func NewQuoteService(
	tx repository.Transactor,
	quotes repository.BudgetQuoteRepository,
	reservations repository.ReservationRepository,
	outbox repository.OutboxRepository,
	platformFeeBps int64,
	ttl time.Duration,
) QuoteService {
	return &quoteService{
		tx:             tx,
		quotes:         quotes,
		reservations:   reservations,
		outbox:         outbox,
		platformFeeBps: platformFeeBps,
		ttl:            ttl,
		now:            time.Now,
	}
}

// SendQuote records a professional's quote delivered over chat and moves a
// draft reservation into quoting.
func (s *quoteService) SendQuote(ctx context.Context, req SendQuoteRequest) (*domain.BudgetQuote, error) {
	req.MessageID = strings.TrimSpace(req.MessageID)
	switch {
	case strings.TrimSpace(req.ReservationID) == "":
		return nil, domain.NewValidationError("reservation_id", "is required")
	case req.MessageID == "":
		return nil, domain.NewValidationError("message_id", "is required")
	case req.Price <= 0:
		return nil, domain.NewValidationError("price", "must be positive")
	}

	res, err := s.reservations.GetByID(ctx, req.ReservationID)
	if err != nil {
		return nil, err
	}
	if req.CallerID != "" && res.ParticipantRole(req.CallerID) != domain.ActorProfessional {
		return nil, fmt.Errorf("only the professional can quote: %w", domain.ErrForbidden)
	}

	moveToQuoting := res.Status == domain.ReservationStatusDraft
	if !moveToQuoting && res.Status != domain.ReservationStatusQuoting {
		return nil, &domain.InvalidTransitionError{From: res.Status, To: domain.ReservationStatusQuoting, Modality: res.Modality, Reason: "quotes can only be sent before approval"}
	}

	quote := &domain.BudgetQuote{
		MessageID:     req.MessageID,
		ReservationID: res.ID,
		Status:        domain.QuoteStatusPendingApproval,
		Price:         req.Price,
		Notes:         strings.TrimSpace(req.Notes),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.quotes.Create(ctx, quote); err != nil {
			return err
		}
		if !moveToQuoting {
			return nil
		}
		return s.advance(ctx, res, domain.ReservationStatusQuoting, domain.ActorProfessional)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Quote sent", "messageID", quote.MessageID, "reservationID", res.ID, "price", quote.Price)
	return quote, nil
}

// AcceptQuote prices the reservation from the quote and hands it to the client
// for approval.
func (s *quoteService) AcceptQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	quote, res, err := s.loadPending(ctx, messageID, callerID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateTransition(res.Modality, res.Status, domain.ReservationStatusPendingApproval); err != nil {
		return nil, err
	}

	breakdown, err := utils.CalculateFinancialsWithBreakdown(quote.Price, s.platformFeeBps)
	if err != nil {
		return nil, domain.NewValidationError("price", err.Error())
	}
	fin := domain.Financials{Price: breakdown.Price, PlatformFee: breakdown.PlatformFee, Total: breakdown.Total}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.settleQuote(ctx, quote, domain.QuoteStatusAccepted); err != nil {
			return err
		}
		if err := s.reservations.UpdateFinancials(ctx, res.ID, fin); err != nil {
			return err
		}
		res.Financials = fin
		return s.advance(ctx, res, domain.ReservationStatusPendingApproval, domain.ActorClient)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Quote accepted",
		"messageID", quote.MessageID,
		"reservationID", res.ID,
		"price", utils.FormatAmount(breakdown.Price),
		"feeBps", breakdown.FeeBasisPoints,
		"total", utils.FormatAmount(breakdown.Total))
	return quote, nil
}

// RejectQuote leaves the reservation in quoting so a new quote can be sent.
func (s *quoteService) RejectQuote(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, error) {
	quote, _, err := s.loadPending(ctx, messageID, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.settleQuote(ctx, quote, domain.QuoteStatusRejected); err != nil {
		return nil, err
	}

	logger.Info("Quote rejected", "messageID", quote.MessageID, "reservationID", quote.ReservationID)
	return quote, nil
}

func (s *quoteService) ExpireQuotes(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.Add(-s.ttl)
	ids, err := s.quotes.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		logger.Info("Expired stale quotes", "count", len(ids), "cutoff", cutoff)
	}
	return ids, nil
}

func (s *quoteService) loadPending(ctx context.Context, messageID, callerID string) (*domain.BudgetQuote, *domain.Reservation, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, nil, domain.NewValidationError("message_id", "is required")
	}
	quote, err := s.quotes.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.reservations.GetByID(ctx, quote.ReservationID)
	if err != nil {
		return nil, nil, err
	}
	if callerID != "" && res.ParticipantRole(callerID) != domain.ActorClient {
		return nil, nil, fmt.Errorf("only the client can answer a quote: %w", domain.ErrForbidden)
	}
	if quote.Status != domain.QuoteStatusPendingApproval {
		return nil, nil, fmt.Errorf("quote %s is %s: %w", quote.MessageID, quote.Status, domain.ErrConflict)
	}
	return quote, res, nil
}

func (s *quoteService) settleQuote(ctx context.Context, quote *domain.BudgetQuote, next domain.QuoteStatus) error {
	updated, err := s.quotes.UpdateStatusIfCurrent(ctx, quote.MessageID, domain.QuoteStatusPendingApproval, next)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("quote %s was answered concurrently: %w", quote.MessageID, domain.ErrConflict)
	}
	quote.Status = next
	return nil
}

func (s *quoteService) advance(ctx context.Context, res *domain.Reservation, to domain.ReservationStatus, actor domain.Actor) error {
	from := res.Status
	updated, err := s.reservations.UpdateStatusIfCurrent(ctx, res.ID, from, to, "")
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("reservation %s is no longer %s: %w", res.ID, from, domain.ErrConflict)
	}
	res.Status = to

	ev, err := domain.NewStatusChangedEvent(res, from, to, actor, "", "", s.now())
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, ev)
}
