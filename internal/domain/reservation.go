package domain

import (
	"time"

	"reservas-backend/internal/timerange"
)

type Modality = timerange.Modality

const (
	ModalityInstant   = timerange.Instant
	ModalityScheduled = timerange.Scheduled
)

type ReservationStatus string

const (
	ReservationStatusDraft           ReservationStatus = "draft"
	ReservationStatusQuoting         ReservationStatus = "quoting"
	ReservationStatusPendingApproval ReservationStatus = "pending_approval"
	ReservationStatusConfirmed       ReservationStatus = "confirmed"
	ReservationStatusOnRoute         ReservationStatus = "on_route"
	ReservationStatusInProgress      ReservationStatus = "in_progress"
	ReservationStatusCompleted       ReservationStatus = "completed"
	ReservationStatusCanceledClient  ReservationStatus = "canceled_client"
	ReservationStatusCanceledPro     ReservationStatus = "canceled_pro"
	ReservationStatusDisputed        ReservationStatus = "disputed"
)

// Actor identifies who asked for a status change.
type Actor string

const (
	ActorClient        Actor = "client"
	ActorProfessional  Actor = "professional"
	ActorSystemTimeout Actor = "system_timeout"
)

// Financials are expressed in minor currency units.
type Financials struct {
	Price       int64 `json:"price"`
	PlatformFee int64 `json:"platform_fee"`
	Total       int64 `json:"total"`
}

type Reservation struct {
	ID             string            `json:"id"`
	Modality       Modality          `json:"modality"`
	Status         ReservationStatus `json:"status"`
	TimeRange      timerange.Range   `json:"time_range"`
	ClientID       string            `json:"client_id"`
	ProfessionalID string            `json:"professional_id"`
	Service        string            `json:"service"`
	Financials     Financials        `json:"financials"`
	Notes          string            `json:"notes"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ParticipantRole returns the actor the user plays on this reservation, or "" if none.
func (r *Reservation) ParticipantRole(userID string) Actor {
	switch userID {
	case "":
		return ""
	case r.ClientID:
		return ActorClient
	case r.ProfessionalID:
		return ActorProfessional
	}
	return ""
}
