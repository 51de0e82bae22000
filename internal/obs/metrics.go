// Package obs holds Prometheus instrumentation for the compliance core.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "veritrail_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veritrail_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Mutations counts successful entity-store writes by resource type.
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_entity_mutations_total",
			Help: "Successful entity mutations by resource type and action.",
		},
		[]string{"resource", "action"},
	)

	// AuditAppends counts ledger appends, including CAS retries.
	AuditAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_audit_appends_total",
			Help: "Audit ledger appends by outcome.",
		},
		[]string{"outcome"},
	)

	// AuditTailRetries counts appends that lost the tail race and retried.
	AuditTailRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veritrail_audit_tail_retries_total",
		Help: "Audit appends retried after losing the chain-tail race.",
	})

	// AuthorizationDenials counts denied operations by operation name.
	AuthorizationDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_authorization_denials_total",
			Help: "Denied operations by operation.",
		},
		[]string{"op"},
	)

	// ChainVerifications counts chain checks by result (valid / broken).
	ChainVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_chain_verifications_total",
			Help: "Audit chain verification runs by result.",
		},
		[]string{"result"},
	)

	// ScoreRecomputes counts traceability/score recomputations by trigger.
	ScoreRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_score_recomputes_total",
			Help: "Compliance score recomputations by trigger.",
		},
		[]string{"trigger"},
	)

	// VersionConflicts counts optimistic-concurrency failures.
	VersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritrail_version_conflicts_total",
			Help: "Optimistic concurrency conflicts by resource type.",
		},
		[]string{"resource"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		Mutations, AuditAppends, AuditTailRetries,
		AuthorizationDenials, ChainVerifications, ScoreRecomputes,
		VersionConflicts,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with request counting and latency
// measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
