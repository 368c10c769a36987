// Package metrics exposes Prometheus collectors for the magazine CMS.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	cacheInvalidationsTotal    *prometheus.CounterVec
	crawlerRendersTotal        *prometheus.CounterVec
	uploadsTotal               *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_cache_lookups_total",
				Help: "Response cache lookups, labeled by key kind and result.",
			},
			[]string{"kind", "result"},
		)

		cacheInvalidationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_cache_invalidations_total",
				Help: "Response cache entries purged after writes, labeled by scope.",
			},
			[]string{"scope"},
		)

		crawlerRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_crawler_renders_total",
				Help: "Open Graph documents rendered for social crawlers, labeled by matched signature.",
			},
			[]string{"signature"},
		)

		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_uploads_total",
				Help: "Article image uploads, labeled by storage backend and status.",
			},
			[]string{"backend", "status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit or miss for the given key kind.
func ObserveCacheLookup(kind string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveCacheInvalidation records n purged entries for scope.
func ObserveCacheInvalidation(scope string, n int) {
	Init()
	if n <= 0 {
		return
	}
	cacheInvalidationsTotal.WithLabelValues(scope).Add(float64(n))
}

// ObserveCrawlerRender counts one crawler document served for signature.
func ObserveCrawlerRender(signature string) {
	Init()
	if signature == "" {
		signature = "unknown"
	}
	crawlerRendersTotal.WithLabelValues(signature).Inc()
}

// ObserveUpload counts an image upload attempt.
func ObserveUpload(backend, status string) {
	Init()
	uploadsTotal.WithLabelValues(backend, status).Inc()
}
