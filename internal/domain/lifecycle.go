package domain

import "fmt"

var allReservationStatuses = []ReservationStatus{
	ReservationStatusDraft,
	ReservationStatusQuoting,
	ReservationStatusPendingApproval,
	ReservationStatusConfirmed,
	ReservationStatusOnRoute,
	ReservationStatusInProgress,
	ReservationStatusCompleted,
	ReservationStatusCanceledClient,
	ReservationStatusCanceledPro,
	ReservationStatusDisputed,
}

// cancelable holds the statuses from which either cancellation terminal is reachable.
var cancelable = map[ReservationStatus]bool{
	ReservationStatusPendingApproval: true,
	ReservationStatusConfirmed:       true,
	ReservationStatusOnRoute:         true,
	ReservationStatusInProgress:      true,
}

// forward transitions; cancellation is handled separately.
var allowedTransitions = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationStatusDraft:           {ReservationStatusQuoting: true},
	ReservationStatusQuoting:         {ReservationStatusPendingApproval: true},
	ReservationStatusPendingApproval: {ReservationStatusConfirmed: true},
	ReservationStatusConfirmed:       {ReservationStatusOnRoute: true, ReservationStatusInProgress: true},
	ReservationStatusOnRoute:         {ReservationStatusInProgress: true},
	ReservationStatusInProgress:      {ReservationStatusCompleted: true},
	ReservationStatusCompleted:       {},
	ReservationStatusCanceledClient:  {},
	ReservationStatusCanceledPro:     {},
	ReservationStatusDisputed:        {},
}

// ParseReservationStatus rejects values outside the known status set.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	for _, st := range allReservationStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown reservation status %q", s))
}

func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityInstant, ModalityScheduled:
		return Modality(s), nil
	}
	return "", NewValidationError("modality", fmt.Sprintf("unknown modality %q", s))
}

func ParseActor(s string) (Actor, error) {
	switch Actor(s) {
	case ActorClient, ActorProfessional, ActorSystemTimeout:
		return Actor(s), nil
	}
	return "", NewValidationError("triggered_by", fmt.Sprintf("unknown actor %q", s))
}

// IsTerminal reports whether no further transition is permitted from s.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusCompleted, ReservationStatusCanceledClient, ReservationStatusCanceledPro, ReservationStatusDisputed:
		return true
	}
	return false
}

// IsCancellation reports whether s is one of the two cancellation terminals.
func (s ReservationStatus) IsCancellation() bool {
	return s == ReservationStatusCanceledClient || s == ReservationStatusCanceledPro
}

// CancellationStatusFor maps the triggering actor to its terminal status.
// Only a professional yields canceled_pro.
func CancellationStatusFor(by Actor) ReservationStatus {
	if by == ActorProfessional {
		return ReservationStatusCanceledPro
	}
	return ReservationStatusCanceledClient
}

// ValidateTransition checks a forward (non-cancellation) transition against the
// status graph and the modality guards.
func ValidateTransition(m Modality, from, to ReservationStatus) error {
	if from.IsTerminal() {
		return &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "reservation is in a terminal status"}
	}
	if to.IsCancellation() {
		return &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "cancellation requires an actor"}
	}
	next, ok := allowedTransitions[from]
	if !ok || !next[to] {
		return &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "transition not allowed"}
	}

	switch {
	case to == ReservationStatusOnRoute && m != ModalityInstant:
		return &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "on_route applies to instant bookings only"}
	case from == ReservationStatusConfirmed && to == ReservationStatusInProgress && m != ModalityScheduled:
		return &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "instant bookings go on_route before in_progress"}
	}
	return nil
}

// ValidateCancellation resolves the terminal status for a cancellation by the
// given actor and checks it is reachable from the current status.
func ValidateCancellation(m Modality, from ReservationStatus, by Actor) (ReservationStatus, error) {
	to := CancellationStatusFor(by)
	if from.IsTerminal() {
		return "", &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "reservation is in a terminal status"}
	}
	if !cancelable[from] {
		return "", &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "reservation cannot be canceled from this status"}
	}
	if by == ActorSystemTimeout && from != ReservationStatusPendingApproval {
		return "", &InvalidTransitionError{From: from, To: to, Modality: m, Reason: "timeout cancellation applies to pending approval only"}
	}
	return to, nil
}
