package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by route pattern rather than raw path,
// so session IDs never become label values.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// operationsTotal counts load, ask and summary calls by outcome:
	// "ok", "client_error", "upstream_error", "timeout" or "error".
	operationsTotal *prometheus.CounterVec

	// operationDurationSeconds records the duration of each operation.
	operationDurationSeconds *prometheus.HistogramVec

	// rerankFallbacksTotal counts answers whose grounding fell back to the
	// coarse ranking while a reranker was configured.
	rerankFallbacksTotal prometheus.Counter

	// sessionsActive is the number of loaded document sessions.
	sessionsActive prometheus.Gauge

	// sessionsEvicted counts sessions dropped by the registry, by reason.
	sessionsEvicted *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests by method, route and status.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperqa",
			Subsystem: "agent",
			Name:      "operations_total",
			Help:      "Document operations completed, partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),

		operationDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paperqa",
			Subsystem: "agent",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of document operations.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),

		rerankFallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "paperqa",
			Subsystem: "retrieval",
			Name:      "rerank_fallbacks_total",
			Help:      "Answers grounded on the coarse ranking because reranking failed.",
		}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "paperqa",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of loaded document sessions.",
		}),

		sessionsEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperqa",
			Subsystem: "sessions",
			Name:      "evicted_total",
			Help:      "Sessions evicted from the registry, partitioned by reason.",
		}, []string{"reason"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled by the server, partitioned by method, handler and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paperqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observe records one operation.
func (m *serverMetrics) observe(op, outcome string, start time.Time) {
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.operationDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// instrument is chi middleware recording request counts and latency by
// route pattern.
func (m *serverMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		pattern := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
