package config

import "github.com/shark-explorer/shark-indexer/internal/postgres"

type Config struct {
	Datasource string          `mapstructure:"datasource"` // Datasource to fetch Ergo blocks from, e.g. `ergo-node`
	Database   string          `mapstructure:"database"`   // Database to store explorer data.
	Postgres   postgres.Config `mapstructure:"postgres"`

	// PollIntervalMs is the delay between sync rounds in milliseconds.
	PollIntervalMs int64 `mapstructure:"poll_interval_ms"`

	// BatchSize is the number of consecutive heights fetched by one worker task.
	BatchSize int `mapstructure:"batch_size"`

	// MaxWorkers bounds the number of concurrent block fetch tasks.
	MaxWorkers int `mapstructure:"max_workers"`

	// InitialHeight is the first height to ingest on a fresh database.
	InitialHeight int64 `mapstructure:"initial_height"`

	// MaxReorgDepth bounds the fork point search during reorg repair.
	MaxReorgDepth int64 `mapstructure:"max_reorg_depth"`

	// MaxBlockRetries is the number of times a failing block commit is
	// retried before the block is quarantined.
	MaxBlockRetries int `mapstructure:"max_block_retries"`

	APIHandlers []string `mapstructure:"api_handlers"`
}
