package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/repository"
	"reservas-backend/internal/timerange"

	"github.com/google/uuid"
)

type reservationService struct {
	tx           repository.Transactor
	reservations repository.ReservationRepository
	payments     repository.PaymentRepository
	outbox       repository.OutboxRepository
	ranges       *timerange.Builder
	now          func() time.Time
	newID        func() string
}

func NewReservationService(
	tx repository.Transactor,
	reservations repository.ReservationRepository,
	paymentRepo repository.PaymentRepository,
	outbox repository.OutboxRepository,
	ranges *timerange.Builder,
) ReservationService {
	return &reservationService{
		tx:           tx,
		reservations: reservations,
		payments:     paymentRepo,
		outbox:       outbox,
		ranges:       ranges,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (s *reservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*domain.Reservation, error) {
	modality, err := domain.ParseModality(req.Modality)
	if err != nil {
		return nil, err
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.Service = strings.TrimSpace(req.Service)
	switch {
	case req.ClientID == "":
		return nil, domain.NewValidationError("client_id", "is required")
	case req.ProfessionalID == "":
		return nil, domain.NewValidationError("professional_id", "is required")
	case req.ClientID == req.ProfessionalID:
		return nil, domain.NewValidationError("professional_id", "must differ from client_id")
	case req.Service == "":
		return nil, domain.NewValidationError("service", "is required")
	}

	tr, err := s.ranges.Build(modality, req.ScheduledStart, req.ScheduledEnd)
	if err != nil {
		return nil, domain.NewValidationError("scheduled_end", err.Error())
	}

	res := &domain.Reservation{
		ID:             s.newID(),
		Modality:       modality,
		Status:         domain.ReservationStatusDraft,
		TimeRange:      tr,
		ClientID:       req.ClientID,
		ProfessionalID: req.ProfessionalID,
		Service:        req.Service,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reservations.Create(ctx, res); err != nil {
			return err
		}
		ev, err := domain.NewStatusChangedEvent(res, "", res.Status, domain.ActorClient, "", "", s.now())
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Reservation created", "reservationID", res.ID, "modality", res.Modality, "range", res.TimeRange.String())
	return res, nil
}

// Transition applies a forward state machine move. Cancellations are accepted
// only while no payment is settled; otherwise they must go through the
// cancellation service so the money is returned.
func (s *reservationService) Transition(ctx context.Context, req TransitionRequest) (*domain.Reservation, error) {
	if strings.TrimSpace(req.ReservationID) == "" {
		return nil, domain.NewValidationError("reservation_id", "is required")
	}
	to, err := domain.ParseReservationStatus(string(req.To))
	if err != nil {
		return nil, err
	}

	res, err := s.reservations.GetByID(ctx, req.ReservationID)
	if err != nil {
		return nil, err
	}

	actor := req.Actor
	if req.CallerID != "" {
		actor = res.ParticipantRole(req.CallerID)
		if actor == "" {
			return nil, fmt.Errorf("caller is not a participant: %w", domain.ErrForbidden)
		}
	} else if actor, err = domain.ParseActor(string(req.Actor)); err != nil {
		return nil, err
	}

	from := res.Status
	if to.IsCancellation() {
		if err := s.checkUnpaidCancellation(ctx, res, to, actor); err != nil {
			return nil, err
		}
	} else {
		if err := domain.ValidateTransition(res.Modality, from, to); err != nil {
			return nil, err
		}
		if to == domain.ReservationStatusConfirmed {
			if err := s.requireSettledPayment(ctx, res); err != nil {
				return nil, err
			}
		}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := s.reservations.UpdateStatusIfCurrent(ctx, res.ID, from, to, "")
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("reservation %s is no longer %s: %w", res.ID, from, domain.ErrConflict)
		}
		ev, err := domain.NewStatusChangedEvent(res, from, to, actor, "", "", s.now())
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	res.Status = to
	logger.Info("Reservation transitioned", "reservationID", res.ID, "from", from, "to", to, "actor", actor)
	return res, nil
}

func (s *reservationService) checkUnpaidCancellation(ctx context.Context, res *domain.Reservation, to domain.ReservationStatus, actor domain.Actor) error {
	expected, err := domain.ValidateCancellation(res.Modality, res.Status, actor)
	if err != nil {
		return err
	}
	if expected != to {
		return &domain.InvalidTransitionError{From: res.Status, To: to, Modality: res.Modality, Reason: fmt.Sprintf("%s cancellations end in %s", actor, expected)}
	}

	_, err = s.payments.GetApprovedByReservation(ctx, res.ID)
	switch {
	case err == nil:
		return &domain.InvalidTransitionError{From: res.Status, To: to, Modality: res.Modality, Reason: "a settled payment must be refunded through cancellation"}
	case domain.IsNotFound(err):
		return nil
	default:
		return err
	}
}

func (s *reservationService) requireSettledPayment(ctx context.Context, res *domain.Reservation) error {
	_, err := s.payments.GetApprovedByReservation(ctx, res.ID)
	if domain.IsNotFound(err) {
		return &domain.InvalidTransitionError{From: res.Status, To: domain.ReservationStatusConfirmed, Modality: res.Modality, Reason: "confirmation requires a captured payment"}
	}
	return err
}

// Get returns the reservation with its display mapping. An empty callerID is
// a service caller; anyone else must be a participant.
func (s *reservationService) Get(ctx context.Context, id, callerID string) (*ReservationView, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerID != "" && res.ParticipantRole(callerID) == "" {
		return nil, fmt.Errorf("caller is not a participant: %w", domain.ErrForbidden)
	}

	display, err := domain.DisplayFor(res.Status)
	if err != nil {
		logger.Error("Unmapped reservation status", "reservationID", res.ID, "status", res.Status)
		return nil, err
	}
	return &ReservationView{Reservation: res, Display: display}, nil
}
