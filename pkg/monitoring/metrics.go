package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection. Each collector owns
// its registry, so several can coexist in one process (tests, CLI).
// A nil *MetricsCollector records nothing.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	reloadsTotal   *prometheus.CounterVec
	reloadDuration *prometheus.HistogramVec
	snapshotRows   *prometheus.GaugeVec
	healthScore    *prometheus.GaugeVec
	riskCount      *prometheus.GaugeVec

	eventsPublished *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "service"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_reloads_total",
				Help: "Total number of prediction snapshot reloads",
			},
			[]string{"source", "status", "service"},
		),
		reloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prediction_reload_duration_seconds",
				Help:    "Duration of prediction snapshot reloads in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"source", "service"},
		),
		snapshotRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prediction_snapshot_rows",
				Help: "Number of rows per table in the active prediction snapshot",
			},
			[]string{"table", "service"},
		),
		healthScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prediction_health_score",
				Help: "Inventory health score of the active snapshot (0-100)",
			},
			[]string{"service"},
		),
		riskCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prediction_risks",
				Help: "Number of scored risks by kind and level in the active snapshot",
			},
			[]string{"kind", "level", "service"},
		),

		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Total number of published events",
			},
			[]string{"event_type", "status", "service"},
		),
		eventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_consumed_total",
				Help: "Total number of consumed events",
			},
			[]string{"event_type", "status", "service"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summary_cache_lookups_total",
				Help: "Total number of dashboard summary cache lookups",
			},
			[]string{"result", "service"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.reloadsTotal,
		m.reloadDuration,
		m.snapshotRows,
		m.healthScore,
		m.riskCount,
		m.eventsPublished,
		m.eventsConsumed,
		m.cacheLookups,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordReload records the outcome of a snapshot reload
func (m *MetricsCollector) RecordReload(source string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.reloadsTotal.WithLabelValues(source, status, m.serviceName).Inc()
	m.reloadDuration.WithLabelValues(source, m.serviceName).Observe(duration.Seconds())
}

// SetSnapshotRows records the row count of one input table
func (m *MetricsCollector) SetSnapshotRows(table string, rows int) {
	if m == nil {
		return
	}
	m.snapshotRows.WithLabelValues(table, m.serviceName).Set(float64(rows))
}

// SetHealthScore records the health score of the active snapshot
func (m *MetricsCollector) SetHealthScore(score int) {
	if m == nil {
		return
	}
	m.healthScore.WithLabelValues(m.serviceName).Set(float64(score))
}

// SetRiskCount records how many risks of a kind ("expiry", "stockout") sit at a level
func (m *MetricsCollector) SetRiskCount(kind, level string, count int) {
	if m == nil {
		return
	}
	m.riskCount.WithLabelValues(kind, level, m.serviceName).Set(float64(count))
}

// RecordEventPublished records a publish attempt
func (m *MetricsCollector) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, outcome(err), m.serviceName).Inc()
}

// RecordEventConsumed records a handled event
func (m *MetricsCollector) RecordEventConsumed(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(eventType, outcome(err), m.serviceName).Inc()
}

// RecordCacheLookup records a summary cache hit or miss
func (m *MetricsCollector) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result, m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware creates middleware for HTTP request metrics. The endpoint
// label is the chi route pattern, so path parameters do not explode the
// label set.
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}

		m.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
