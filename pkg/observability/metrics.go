package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access policy metrics
	PolicyDecisionsTotal *prometheus.CounterVec

	// Verification code metrics
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_policy_decisions_total",
				Help: "Access policy decisions by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_verification_codes_total",
				Help: "Verification codes issued and checked, by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PolicyDecisionsTotal,
		m.VerificationsTotal,
	)

	return m
}

// ObserveDecision implements httpx.PolicyObserver.
func (m *Metrics) ObserveDecision(tier rbac.Tier, outcome string) {
	m.PolicyDecisionsTotal.WithLabelValues(tier.String(), outcome).Inc()
}

// ObserveVerification implements service.VerificationObserver.
func (m *Metrics) ObserveVerification(outcome string) {
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// RegisterRoleCache exports the cache counters. They are read at scrape time.
func RegisterRoleCache(registry *prometheus.Registry, cache *rbac.RoleCache) {
	stat := func(pick func(rbac.CacheStats) float64) func() float64 {
		return func() float64 { return pick(cache.Stats()) }
	}

	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "warden_role_cache_hits_total",
			Help: "Role lookups served from the cache",
		}, stat(func(s rbac.CacheStats) float64 { return float64(s.Hits) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "warden_role_cache_misses_total",
			Help: "Role lookups that went to the store",
		}, stat(func(s rbac.CacheStats) float64 { return float64(s.Misses) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "warden_role_cache_invalidations_total",
			Help: "Explicit role cache invalidations",
		}, stat(func(s rbac.CacheStats) float64 { return float64(s.Invalidations) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "warden_role_cache_entries",
			Help: "Roles currently cached",
		}, stat(func(s rbac.CacheStats) float64 { return float64(s.Entries) })),
	)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// HTTPMetricsMiddleware instruments HTTP requests. Requests are labelled by
// the matched mux pattern, not the raw path, to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
