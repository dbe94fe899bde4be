// Package metrics registers the proxy's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"code", "method", "path"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed.",
		},
	)

	// UpstreamRequests counts commerce API calls by operation and outcome
	// ("ok" or an error kind).
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Commerce API calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_upstream_request_duration_seconds",
			Help:    "Commerce API call latency in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 12},
		},
		[]string{"operation"},
	)

	// CatalogCache counts cache lookups: hit, miss, stale (fallback) and empty.
	CatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_cache_events_total",
			Help: "Product cache lookups by result.",
		},
		[]string{"event"},
	)
	CatalogFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_catalog_fetches_total",
			Help: "Full product list fetches issued upstream.",
		},
	)

	// CartRefreshes counts background cart refreshes: applied, discarded (stale) or failed.
	CartRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_refreshes_total",
			Help: "Background cart refreshes by result.",
		},
		[]string{"result"},
	)

	// SwallowedErrors counts failures that were degraded instead of surfaced.
	SwallowedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_swallowed_errors_total",
			Help: "Failures absorbed by read paths and the wishlist toggle.",
		},
		[]string{"component", "kind"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "User sessions currently held in memory.",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP over SSE) working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count, latency and in-flight gauge.
// Paths are labelled with the matched ServeMux pattern to bound cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(strconv.Itoa(rw.statusCode), r.Method, path).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpRequestsInFlight.Dec()
		}()

		next.ServeHTTP(rw, r)
	})
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
