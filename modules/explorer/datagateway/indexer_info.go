package datagateway

import (
	"context"

	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

type IndexerInfoDataGateway interface {
	// GetCurrentDBVersion returns the schema version of the latest indexer
	// state row. Returns errs.NotFound on a fresh database.
	GetCurrentDBVersion(ctx context.Context) (int32, error)
	// GetCurrentNetwork returns the network the database was indexed against.
	// Returns errs.NotFound on a fresh database.
	GetCurrentNetwork(ctx context.Context) (common.Network, error)
	CreateIndexerState(ctx context.Context, state entity.IndexerState) error
}
