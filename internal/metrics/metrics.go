// Package metrics exposes Prometheus counters for the score and leaderboard
// paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	ScoresSubmitted    prometheus.Counter
	ScoresRejected     prometheus.Counter
	LeaderboardQueries prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	LeaderboardCompute prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
}

// New creates the service metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ScoresSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "scores_submitted_total",
			Help:      "Accepted score submissions.",
		}),
		ScoresRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "scores_rejected_total",
			Help:      "Score submissions rejected by validation.",
		}),
		LeaderboardQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "leaderboard_queries_total",
			Help:      "Leaderboard queries served.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "leaderboard_cache_hits_total",
			Help:      "Leaderboard queries answered from cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "leaderboard_cache_misses_total",
			Help:      "Leaderboard queries that required a recompute.",
		}),
		LeaderboardCompute: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arcade",
			Name:      "leaderboard_compute_seconds",
			Help:      "Time spent computing a leaderboard from the score log.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcade",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
}

// Handler returns the /metrics endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
