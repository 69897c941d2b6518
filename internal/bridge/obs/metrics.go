// Package obs holds the bridge's prometheus metrics.
package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seatbridge_build_info",
			Help: "Build information.",
		},
		[]string{"version"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "seatbridge_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbridge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatbridge_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	authFlowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbridge_auth_flow_total",
			Help: "Authorization bridge operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	seatOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbridge_seat_operations_total",
			Help: "Entitlement operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbridge_webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	housekeepingDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbridge_housekeeping_rows_total",
			Help: "Rows removed or expired by housekeeping.",
		},
		[]string{"kind"},
	)
)

// Init registers every metric with the default registry. Safe to call more
// than once.
func Init(version string) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			buildInfo,
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			authFlowTotal,
			seatOpsTotal,
			webhookEventsTotal,
			housekeepingDeleted,
		)
	})
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthFlow counts an authorization bridge operation.
func AuthFlow(op, outcome string) {
	authFlowTotal.WithLabelValues(op, outcome).Inc()
}

// SeatOp counts an entitlement operation.
func SeatOp(op, outcome string) {
	seatOpsTotal.WithLabelValues(op, outcome).Inc()
}

// WebhookEvent counts a processed payment webhook.
func WebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// Housekeeping counts rows a sweep touched.
func Housekeeping(kind string, n int64) {
	if n > 0 {
		housekeepingDeleted.WithLabelValues(kind).Add(float64(n))
	}
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := CanonicalRoute(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	})
}

// CanonicalRoute collapses path parameters so label cardinality stays bounded.
func CanonicalRoute(path string) string {
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/org/"); ok {
		_, tail, found := strings.Cut(rest, "/")
		if !found {
			return "/org/{orgId}"
		}
		return "/org/{orgId}/" + tail
	}
	if strings.HasPrefix(path, "/swagger/") {
		return "/swagger/"
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
