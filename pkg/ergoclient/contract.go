package ergoclient

import (
	"context"
)

// Contract is the read surface of an Ergo node REST API used by the indexer.
type Contract interface {
	// Info returns the node status. FullHeight is the tip of the fully
	// downloaded chain.
	Info(ctx context.Context) (*NodeInfo, error)

	// BlockIDsAtHeight returns header ids at the given height, main chain
	// first. Returns errs.NotFound when the node knows no block there.
	BlockIDsAtHeight(ctx context.Context, height int64) ([]string, error)

	// BlockByID returns the full block (header and transactions).
	BlockByID(ctx context.Context, id string) (*FullBlock, error)

	// HeaderByID returns the block header only.
	HeaderByID(ctx context.Context, id string) (*BlockHeader, error)

	// UnconfirmedTransactions pages through the node mempool.
	UnconfirmedTransactions(ctx context.Context, limit, offset int32) ([]Transaction, error)
}
