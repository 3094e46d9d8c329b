// Package metrics collects request, auth and GitHub lookup metrics for
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth rejection reasons.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
)

// Collector holds the server's Prometheus metrics.
type Collector struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
	githubLookups  *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devlink_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_auth_rejections_total",
			Help: "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
		githubLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_github_lookups_total",
			Help: "GitHub repository lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.requests, c.latency, c.authRejections, c.githubLookups)
	return c
}

// RecordAuthRejection counts a request turned away by the auth gate.
func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

// RecordGitHubLookup counts a GitHub lookup result.
func (c *Collector) RecordGitHubLookup(result string) {
	c.githubLookups.WithLabelValues(result).Inc()
}

// Middleware records count and latency of every request, labelled with the
// matched chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics in gatherer for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
