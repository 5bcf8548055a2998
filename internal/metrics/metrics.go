// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// View results recorded by PostViewed.
const (
	ViewCounted      = "counted"
	ViewDeduplicated = "deduplicated"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// Buckets cover fast page renders up to slow database round trips.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	postsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "board_posts_created_total",
			Help: "Total number of posts created",
		},
	)

	postViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_post_views_total",
			Help: "Post detail views by deduplication result",
		},
		[]string{"result"},
	)
)

// RecordRequest observes one finished HTTP request. route is the matched
// route pattern, never the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// PostCreated counts a successfully stored post.
func PostCreated() {
	postsCreatedTotal.Inc()
}

// PostViewed counts a view registration with its result, ViewCounted or
// ViewDeduplicated.
func PostViewed(result string) {
	postViewsTotal.WithLabelValues(result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
