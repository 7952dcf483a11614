package http

import (
	"net/http"

	"reservas-backend/internal/service"

	"github.com/gorilla/mux"
)

// QuoteHandler serves budget quote requests
type QuoteHandler struct {
	quotes service.QuoteService
}

func NewQuoteHandler(quotes service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// Send handles POST /api/v1/quotes
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req service.SendQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, _ := PrincipalFromContext(r.Context())
	req.CallerID = p.UserID

	q, err := h.quotes.SendQuote(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, q)
}

// Accept handles POST /api/v1/quotes/{message_id}/accept
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	q, err := h.quotes.AcceptQuote(r.Context(), mux.Vars(r)["message_id"], p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}

// Reject handles POST /api/v1/quotes/{message_id}/reject
func (h *QuoteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	q, err := h.quotes.RejectQuote(r.Context(), mux.Vars(r)["message_id"], p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}
