package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Indexer metrics
var (
	IndexedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexed_blocks",
		Help: "The total number of blocks committed to storage",
	})

	ChainReorgEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chain_reorg_events_total",
		Help: "The total number of chain reorganizations repaired",
	})

	PoisonBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poison_blocks_total",
		Help: "The total number of blocks quarantined after exhausting processing retries",
	})

	CurrentHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_current_height",
		Help: "The latest indexed block height",
	})

	TargetHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_target_height",
		Help: "The node chain tip the indexer is syncing towards",
	})
)

// Storage metrics
var (
	BlockCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "block_commit_duration_seconds",
		Help:    "Time spent committing one block inside a database transaction",
		Buckets: prometheus.DefBuckets,
	})
)
