package http

import (
	"fmt"
	"net/http"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/service"

	"github.com/gorilla/mux"
)

// ReservationHandler serves reservation lifecycle and cancellation requests
type ReservationHandler struct {
	reservations  service.ReservationService
	cancellations service.CancellationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservations service.ReservationService, cancellations service.CancellationService) *ReservationHandler {
	return &ReservationHandler{
		reservations:  reservations,
		cancellations: cancellations,
	}
}

// Create handles POST /api/v1/reservations
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, _ := PrincipalFromContext(r.Context())
	if p.UserID != req.ClientID && p.UserID != req.ProfessionalID {
		writeError(w, fmt.Errorf("caller is not a participant: %w", domain.ErrForbidden))
		return
	}

	res, err := h.reservations.CreateReservation(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

// Get handles GET /api/v1/reservations/{id}
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	view, err := h.reservations.Get(r.Context(), mux.Vars(r)["id"], p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

// Transition handles POST /api/v1/reservations/{id}/transitions
func (h *ReservationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req service.TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.ReservationID = mux.Vars(r)["id"]

	// Users act as their role on the reservation; service callers name the actor.
	p, _ := PrincipalFromContext(r.Context())
	if !p.IsService() {
		req.CallerID = p.UserID
	}

	res, err := h.reservations.Transition(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// Cancel handles POST /api/v1/reservations/cancel. A reservation with
// nothing left to refund answers success so retries stay harmless.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req service.CancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, _ := PrincipalFromContext(r.Context())
	req.ServiceCaller = p.IsService()
	req.CallerID = p.UserID

	result, err := h.cancellations.Cancel(r.Context(), req)
	if err != nil {
		if domain.IsNotFound(err) {
			logger.Info("Cancellation was a no-op", "reservationID", req.ReservationID, "reason", err)
			writeJSON(w, http.StatusOK, envelope{Success: true})
			return
		}
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
