// Package metrics holds the Prometheus collectors for the turn engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry is separate from prometheus.DefaultRegisterer.
var registry = prometheus.NewRegistry()

var (
	turnsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_turns_total",
			Help: "Turns processed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	turnDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taleforge_turn_duration_seconds",
			Help:    "Wall time of a full turn, including upstream retries.",
			Buckets: prometheus.DefBuckets,
		},
	)
	upstreamAttempts = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_upstream_attempts_total",
			Help: "Upstream completion attempts, partitioned by provider and status.",
		},
		[]string{"provider", "status"},
	)
	upstreamDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taleforge_upstream_request_duration_seconds",
			Help:    "Duration of single upstream completion attempts.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	parseDegraded = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "taleforge_parse_degraded_total",
			Help: "Replies whose options had to be recovered or padded with fallbacks.",
		},
	)
	assetLookups = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_asset_resolutions_total",
			Help: "Asset categories resolved per turn, partitioned by category and result.",
		},
		[]string{"category", "result"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordTurn counts a finished turn.
func RecordTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(d.Seconds())
}

// RecordUpstreamAttempt counts one provider call.
func RecordUpstreamAttempt(provider, status string, d time.Duration) {
	upstreamAttempts.WithLabelValues(provider, status).Inc()
	upstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordParseDegraded counts a reply that needed option recovery.
func RecordParseDegraded() {
	parseDegraded.Inc()
}

// RecordAsset counts a category resolution.
func RecordAsset(category string, matched bool) {
	result := "unknown"
	if matched {
		result = "matched"
	}
	assetLookups.WithLabelValues(category, result).Inc()
}
