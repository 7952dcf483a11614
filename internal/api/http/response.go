package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "status", status, "error", err)
	}
	writeFailure(w, status, message)
}

func errorStatus(err error) (int, string) {
	var (
		validation *domain.ValidationError
		gateway    *domain.UpstreamGatewayError
		transition *domain.InvalidTransitionError
		partial    *domain.PartialFailureError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &gateway):
		if gateway.Message != "" {
			return http.StatusBadGateway, gateway.Message
		}
		return http.StatusBadGateway, gateway.Error()
	case errors.As(err, &partial):
		if partial.Operation == "save_payment_method" {
			return http.StatusInternalServerError, "the card was saved at the payment processor but could not be recorded; support has been notified"
		}
		return http.StatusInternalServerError, "the operation did not complete; support has been notified"
	case errors.As(err, &transition):
		return http.StatusConflict, transition.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case domain.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("", "malformed JSON body: "+err.Error())
	}
	return nil
}
