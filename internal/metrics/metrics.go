// Package metrics exposes Prometheus collectors for the alert service.
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
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	refreshTotal               *prometheus.CounterVec
	refreshDurationSeconds     *prometheus.HistogramVec
	newPostingsTotal           *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobalert_fetch_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobalert_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		refreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobalert_refresh_total",
				Help: "Total number of category refreshes, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		refreshDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobalert_refresh_duration_seconds",
				Help:    "Histogram of category refresh latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"category"},
		)

		newPostingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobalert_new_postings_total",
				Help: "Total number of postings detected as new, labeled by category.",
			},
			[]string{"category"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobalert_notifications_total",
				Help: "Total number of notification dispatches, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobalert_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch records one page fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRefresh records the outcome and latency of one category refresh.
func ObserveRefresh(category, outcome string, duration time.Duration) {
	Init()
	refreshTotal.WithLabelValues(category, outcome).Inc()
	refreshDurationSeconds.WithLabelValues(category).Observe(duration.Seconds())
}

// ObserveNewPostings adds to the new-postings counter for category.
func ObserveNewPostings(category string, n int) {
	Init()
	if n > 0 {
		newPostingsTotal.WithLabelValues(category).Add(float64(n))
	}
}

// ObserveNotification increments the dispatch counter for a channel.
func ObserveNotification(channel, outcome string) {
	Init()
	notificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
