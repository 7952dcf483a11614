package http

import (
	"context"
	"net/http"
	"time"

	"reservas-backend/internal/metrics"

	"github.com/gorilla/mux"
)

// Pinger reports datastore reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Reservations   *ReservationHandler
	PaymentMethods *PaymentMethodHandler
	Quotes         *QuoteHandler
	Scheduler      *SchedulerHandler
	DB             Pinger
}

// NewRouter registers every route under the name its security level is
// configured with.
func NewRouter(h Handlers, auth *AuthMiddleware, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware, limiter.Handler, auth.Handler)

	router.HandleFunc("/health", healthHandler(h.DB)).Methods(http.MethodGet).Name("health")
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet).Name("metrics")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/reservations/cancel", h.Reservations.Cancel).Methods(http.MethodPost).Name("CancelReservation")
	api.HandleFunc("/reservations", h.Reservations.Create).Methods(http.MethodPost).Name("CreateReservation")
	api.HandleFunc("/reservations/{id}", h.Reservations.Get).Methods(http.MethodGet).Name("GetReservation")
	api.HandleFunc("/reservations/{id}/transitions", h.Reservations.Transition).Methods(http.MethodPost).Name("TransitionReservation")

	api.HandleFunc("/quotes", h.Quotes.Send).Methods(http.MethodPost).Name("SendQuote")
	api.HandleFunc("/quotes/{message_id}/accept", h.Quotes.Accept).Methods(http.MethodPost).Name("AcceptQuote")
	api.HandleFunc("/quotes/{message_id}/reject", h.Quotes.Reject).Methods(http.MethodPost).Name("RejectQuote")

	api.HandleFunc("/payment-methods", h.PaymentMethods.Save).Methods(http.MethodPost).Name("SavePaymentMethod")

	api.HandleFunc("/scheduler/auto-cancel", h.Scheduler.AutoCancel).Methods(http.MethodPost).Name("AutoCancelPending")

	return router
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
