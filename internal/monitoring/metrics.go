package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns a registry with the service's HTTP and ledger metrics
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// OutcomesTotal counts engine invocations by direction and result
	OutcomesTotal *prometheus.CounterVec
	// OutcomeDuration observes the time from aggregation to commit
	OutcomeDuration *prometheus.HistogramVec
	// TipsProcessed counts tips applied or reversed
	TipsProcessed *prometheus.CounterVec
	// TriggerFailures counts leaderboard refreshes that could not be scheduled
	TriggerFailures *prometheus.CounterVec
}

// NewMetricsCollector creates the collector on its own registry so tests can
// build as many as they like.
func NewMetricsCollector(serviceName string) *MetricsCollector {
	sanitized := strings.ReplaceAll(serviceName, "-", "_")

	mc := &MetricsCollector{
		serviceName: sanitized,
		registry:    prometheus.NewRegistry(),
	}

	mc.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: sanitized + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	mc.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    sanitized + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	mc.OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: sanitized + "_tip_outcomes_total",
			Help: "Tip batches processed by the ledger engine",
		},
		[]string{"direction", "result"},
	)

	mc.OutcomeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    sanitized + "_tip_outcome_duration_seconds",
			Help:    "Ledger engine duration per batch, lock waits included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"direction"},
	)

	mc.TipsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: sanitized + "_tips_processed_total",
			Help: "Tips applied or reversed by the ledger engine",
		},
		[]string{"direction"},
	)

	mc.TriggerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: sanitized + "_leaderboard_trigger_failures_total",
			Help: "Leaderboard refreshes that could not be scheduled",
		},
		[]string{"variant"},
	)

	mc.registry.MustRegister(
		mc.httpRequestsTotal,
		mc.httpRequestDuration,
		mc.OutcomesTotal,
		mc.OutcomeDuration,
		mc.TipsProcessed,
		mc.TriggerFailures,
		collectors.NewGoCollector(),
	)

	return mc
}

// MetricsMiddleware records request counts and latencies keyed by route pattern
func (mc *MetricsCollector) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		mc.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		mc.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
