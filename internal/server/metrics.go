// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"

	// Routing outcomes recorded on the routing counter.
	outcomeRouted   = "routed"
	outcomeFallback = "fallback"
	outcomeNoMatch  = "no_match"
	outcomeError    = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// routingRequestsTotal counts completed routing decisions, partitioned
	// by outcome: "routed", "fallback", "no_match", or "error".
	routingRequestsTotal *prometheus.CounterVec

	// routingDurationSeconds records the wall-clock duration of each
	// routing decision including the embedding call.
	routingDurationSeconds *prometheus.HistogramVec

	// ingestDocumentsTotal counts documents ingested via the API.
	ingestDocumentsTotal prometheus.Counter

	// ingestChildVectorsTotal counts child vectors produced by API ingestion.
	ingestChildVectorsTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		routingRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docroute",
			Subsystem: "routing",
			Name:      "requests_total",
			Help:      "Total number of routing decisions completed, partitioned by outcome.",
		}, []string{"outcome"}),

		routingDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docroute",
			Subsystem: "routing",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of routing decisions including embedding.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		ingestDocumentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docroute",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents ingested via the API.",
		}),

		ingestChildVectorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docroute",
			Subsystem: "ingest",
			Name:      "child_vectors_total",
			Help:      "Total number of child vectors produced by API ingestion.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docroute",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docroute",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps next so its requests are counted and timed under the
// given logical handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}
