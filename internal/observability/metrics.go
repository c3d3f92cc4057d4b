package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storeDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Metrics holds all Prometheus metric instruments for the engine.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Workflow metrics
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec

	// Permission metrics
	PermissionChecksTotal *prometheus.CounterVec

	// Escalation metrics
	EscalationScansTotal   *prometheus.CounterVec
	EscalationsDetected    *prometheus.GaugeVec
	EscalationScanDuration prometheus.Histogram

	// System metrics
	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabula_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		// Workflow
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_transitions_total",
			Help: "Total number of transition attempts.",
		}, []string{"table", "transition", "outcome"}),
		TransitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabula_transition_duration_seconds",
			Help:    "Transition execution duration in seconds.",
			Buckets: storeDurationBuckets,
		}, []string{"table"}),

		// Permissions
		PermissionChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_permission_checks_total",
			Help: "Total permission checks by outcome.",
		}, []string{"table", "action", "outcome"}),

		// Escalations
		EscalationScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_escalation_scans_total",
			Help: "Total escalation scans by status.",
		}, []string{"table", "status"}),
		EscalationsDetected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabula_escalations_detected",
			Help: "Number of overdue records found by the most recent scan.",
		}, []string{"table"}),
		EscalationScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabula_escalation_scan_duration_seconds",
			Help:    "Escalation scan duration in seconds.",
			Buckets: storeDurationBuckets,
		}),

		// System
		DefinitionReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_definition_reload_total",
			Help: "Total definition reloads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tabula_definitions_loaded",
			Help: "Number of loaded table definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		// Workflow
		m.TransitionsTotal,
		m.TransitionDuration,
		// Permissions
		m.PermissionChecksTotal,
		// Escalations
		m.EscalationScansTotal,
		m.EscalationsDetected,
		m.EscalationScanDuration,
		// System
		m.DefinitionReloadTotal,
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// RecordTransition records a transition attempt. Outcome is "success" or the
// error code of the failure.
func (m *Metrics) RecordTransition(table, transition, outcome string, duration time.Duration) {
	m.TransitionsTotal.WithLabelValues(table, transition, outcome).Inc()
	m.TransitionDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordPermissionCheck records a permission check outcome.
func (m *Metrics) RecordPermissionCheck(table, action string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(table, action, outcome).Inc()
}

// RecordEscalationScan records an escalation scan and its findings.
func (m *Metrics) RecordEscalationScan(table, status string, detected int, duration time.Duration) {
	m.EscalationScansTotal.WithLabelValues(table, status).Inc()
	m.EscalationsDetected.WithLabelValues(table).Set(float64(detected))
	m.EscalationScanDuration.Observe(duration.Seconds())
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded table definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
