package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StrategyAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vksync_strategy_attempts_total",
		Help: "The total number of fetch attempts per extraction strategy",
	}, []string{"strategy"})

	StrategySuccesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vksync_strategy_successes_total",
		Help: "The total number of successful fetches per extraction strategy",
	}, []string{"strategy"})

	PostsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vksync_posts_imported_total",
		Help: "The total number of wall posts imported as news records",
	})

	PostsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vksync_posts_skipped_total",
		Help: "The total number of wall posts skipped (already imported or empty)",
	})

	PostErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vksync_post_errors_total",
		Help: "The total number of per-post ingestion failures",
	})

	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vksync_cycles_total",
		Help: "The total number of sync cycles by outcome",
	}, []string{"status"})

	SyncCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vksync_cycle_duration_seconds",
		Help:    "Duration in seconds of a full sync cycle (fetch plus import)",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})
)
