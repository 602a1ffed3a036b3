// Package metrics exposes the process-wide Prometheus collectors for the font
// crawler service along with the HTTP middleware that feeds them.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	crawlsInFlight             prometheus.Gauge
	crawlSlotWaitSeconds       prometheus.Histogram
	crawlResultsTotal          *prometheus.CounterVec
	sideEffectFailuresTotal    *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors with the default registry.
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fontcrawler_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-site rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		crawlsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fontcrawler_crawls_in_flight",
				Help: "Crawls currently holding a concurrency slot.",
			},
		)

		crawlSlotWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fontcrawler_crawl_slot_wait_seconds",
				Help:    "Time a crawl waited for a concurrency slot.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
			},
		)

		crawlResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fontcrawler_crawl_results_total",
				Help: "Finished crawls, labeled by strategy and status.",
			},
			[]string{"strategy", "status"},
		)

		sideEffectFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fontcrawler_side_effect_failures_total",
				Help: "Failed persistence or publish attempts after a crawl, labeled by kind.",
			},
			[]string{"kind"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
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

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(rawURL string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// CrawlSlotAcquired records a crawl entering the concurrency gate after wait.
func CrawlSlotAcquired(wait time.Duration) {
	Init()
	crawlsInFlight.Inc()
	crawlSlotWaitSeconds.Observe(wait.Seconds())
}

// CrawlSlotReleased records a crawl leaving the concurrency gate.
func CrawlSlotReleased() {
	Init()
	crawlsInFlight.Dec()
}

// ObserveCrawlResult counts a finished crawl.
func ObserveCrawlResult(strategy, status string) {
	Init()
	crawlResultsTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveSideEffectFailure counts a failed store write ("store") or publish ("publish").
func ObserveSideEffectFailure(kind string) {
	Init()
	sideEffectFailuresTotal.WithLabelValues(kind).Inc()
}
