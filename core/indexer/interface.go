package indexer

import (
	"context"

	"github.com/shark-explorer/shark-indexer/core/types"
)

// IndexerWorker is a long-running sync worker started by the run command.
type IndexerWorker interface {
	Run(ctx context.Context) error
}

// Input is one unit of work produced by a datasource, ordered by height.
type Input interface {
	BlockHeader() types.BlockHeader
}

type Processor[T Input] interface {
	Name() string

	// Process processes the input data and indexes it.
	Process(ctx context.Context, inputs []T) error

	// CurrentBlock returns the latest indexed block header.
	CurrentBlock(ctx context.Context) (types.BlockHeader, error)

	// GetIndexedBlockHeader returns the indexed block header by the specified block height.
	GetIndexedBlockHeader(ctx context.Context, height int64) (types.BlockHeader, error)

	// RevertData reverts synced data from the specified block height for re-indexing.
	RevertData(ctx context.Context, from int64) error

	// Shutdown flushes processor state before the indexer stops.
	Shutdown(ctx context.Context) error
}
