// Package metrics holds the Prometheus collectors shared by the API and the cron process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_refunds_total",
			Help: "Cancellation refunds by outcome",
		},
		[]string{"outcome"},
	)

	sweepOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_cancel_sweep_reservations_total",
			Help: "Reservations processed by the auto-cancel sweep",
		},
		[]string{"result"},
	)

	reconciliationItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_items_total",
			Help: "Processor/local state inconsistencies recorded for manual resolution",
		},
		[]string{"kind"},
	)

	outboxDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_dispatched_total",
			Help: "Outbox events handed to the broker by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(refundsTotal)
	prometheus.MustRegister(sweepOutcomesTotal)
	prometheus.MustRegister(reconciliationItemsTotal)
	prometheus.MustRegister(outboxDispatchedTotal)
}

// Refund outcomes.
const (
	RefundSucceeded    = "succeeded"
	RefundNoop         = "noop"
	RefundFailed       = "failed"
	RefundPartialState = "partial_failure"
)

func ObserveHTTPRequest(method, route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordRefund(outcome string) {
	refundsTotal.WithLabelValues(outcome).Inc()
}

func RecordSweepOutcome(success bool) {
	result := "canceled"
	if !success {
		result = "skipped"
	}
	sweepOutcomesTotal.WithLabelValues(result).Inc()
}

func RecordReconciliationItem(kind string) {
	reconciliationItemsTotal.WithLabelValues(kind).Inc()
}

func RecordOutboxDispatch(success bool) {
	result := "published"
	if !success {
		result = "failed"
	}
	outboxDispatchedTotal.WithLabelValues(result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
