package http

import (
	"fmt"
	"net/http"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/service"
)

// PaymentMethodHandler serves card vaulting requests
type PaymentMethodHandler struct {
	methods service.PaymentMethodService
}

func NewPaymentMethodHandler(methods service.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

// Save handles POST /api/v1/payment-methods. An omitted user_id defaults to
// the caller; users can only vault cards for themselves.
func (h *PaymentMethodHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req service.SaveMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, _ := PrincipalFromContext(r.Context())
	if req.UserID == "" {
		req.UserID = p.UserID
	}
	if req.UserID != p.UserID {
		writeError(w, fmt.Errorf("cannot save a card for another user: %w", domain.ErrForbidden))
		return
	}

	rec, err := h.methods.SaveMethod(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rec)
}
