package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	// HTTPRequestDuration tracks request latency by method, path, and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestTimeout counts requests that hit the timeout threshold by path.
	HTTPRequestTimeout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_timeout_total",
			Help: "Total number of HTTP request timeouts",
		},
		[]string{"path"},
	)
)

// Database metrics
var (
	// DBTransactionDuration tracks ledger transaction duration by operation label.
	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_transaction_duration_seconds",
			Help:    "Duration of database transactions in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// Processor metrics
var (
	// ProcessorCallDuration tracks remote processor latency by operation and outcome.
	ProcessorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_call_duration_seconds",
			Help:    "Duration of remote payment processor calls in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "outcome"},
	)

	// ProcessorBreakerTransitions counts circuit breaker state changes by target state.
	ProcessorBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_breaker_state_changes_total",
			Help: "Total number of processor circuit breaker state changes",
		},
		[]string{"to"},
	)
)

// Business metrics
var (
	// PaymentOutcomes counts gateway results by operation and terminal state.
	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Total number of payment results by operation and state",
		},
		[]string{"operation", "state"},
	)

	// RiskDecisions counts AVS/CVN policy decisions.
	RiskDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_decisions_total",
			Help: "Total number of AVS/CVN risk policy decisions",
		},
		[]string{"decision"},
	)

	// CaptureInconsistencies counts captures acknowledged with zero successes.
	CaptureInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_inconsistencies_total",
			Help: "Total number of capture acknowledgements reporting zero successes",
		},
	)

	// IdempotencyCacheHits counts replayed responses for repeated idempotency keys.
	IdempotencyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_cache_hits_total",
			Help: "Total number of idempotency cache hits",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware that records request metrics.
// Side effects: records Prometheus metrics and reads the current time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := normalizePath(r.URL.Path)

		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()

		// Check for timeout (context canceled with 5s timeout typically means timeout)
		if r.Context().Err() != nil && duration >= 4.9 {
			HTTPRequestTimeout.WithLabelValues(path).Inc()
		}
	})
}

// normalizePath normalizes URL paths to avoid cardinality explosion.
// Authorization tokens in /payments/{token} and /payments/{token}/capture are
// replaced with a placeholder.
func normalizePath(path string) string {
	const prefix = "/payments/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	switch {
	case strings.HasPrefix(rest, "stored/"), rest == "authorize", rest == "purchase":
		return path
	case strings.HasSuffix(rest, "/capture"):
		return prefix + "{token}/capture"
	default:
		return prefix + "{token}"
	}
}

// RecordTransactionDuration records a ledger transaction duration.
// Side effects: records a Prometheus metric.
func RecordTransactionDuration(operation string, duration time.Duration) {
	DBTransactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProcessorCall records the latency of one remote processor call.
// Side effects: records a Prometheus metric.
func RecordProcessorCall(operation, outcome string, duration time.Duration) {
	ProcessorCallDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordBreakerTransition increments the breaker state change counter.
// Side effects: records a Prometheus metric.
func RecordBreakerTransition(to string) {
	ProcessorBreakerTransitions.WithLabelValues(to).Inc()
}

// RecordPaymentOutcome increments the payment outcome counter.
// Side effects: records a Prometheus metric.
func RecordPaymentOutcome(operation, state string) {
	PaymentOutcomes.WithLabelValues(operation, state).Inc()
}

// RecordRiskDecision increments the risk decision counter.
// Side effects: records a Prometheus metric.
func RecordRiskDecision(decision string) {
	RiskDecisions.WithLabelValues(decision).Inc()
}

// RecordCaptureInconsistency increments the zero-success capture counter.
// Side effects: records a Prometheus metric.
func RecordCaptureInconsistency() {
	CaptureInconsistencies.Inc()
}

// RecordIdempotencyCacheHit increments the cache hit counter.
// Side effects: records a Prometheus metric.
func RecordIdempotencyCacheHit() {
	IdempotencyCacheHits.Inc()
}
