package datagateway

import (
	"context"

	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

type ExplorerDataGateway interface {
	ExplorerReaderDataGateway
	ExplorerWriterDataGateway

	// BeginTx opens the repository transaction. All writes require an open
	// transaction; reads use it while open and the pool otherwise.
	BeginTx(ctx context.Context) error
	// CommitTx commits the open transaction. No-op without one.
	CommitTx(ctx context.Context) error
	// RollbackTx discards the open transaction. Safe to defer unconditionally:
	// after CommitTx it is a no-op.
	RollbackTx(ctx context.Context) error
}

type ExplorerReaderDataGateway interface {
	// GetLatestIndexedBlockHeader returns the highest main-chain block header.
	// Returns errs.NotFound when nothing is indexed yet.
	GetLatestIndexedBlockHeader(ctx context.Context) (types.BlockHeader, error)
	// GetIndexedBlockHeaderByHeight returns the main-chain block header at the
	// given height. Returns errs.NotFound when the height is not indexed.
	GetIndexedBlockHeaderByHeight(ctx context.Context, height int64) (types.BlockHeader, error)
	// GetOutputsByBoxIDs returns stored outputs with their assets, keyed by box
	// id. Missing box ids are simply absent from the result.
	GetOutputsByBoxIDs(ctx context.Context, boxIDs []string) (map[string]*entity.Output, error)
	// HasBalanceChanges reports whether the block's balance deltas are already
	// journaled. Used to keep re-processing an applied block a no-op.
	HasBalanceChanges(ctx context.Context, blockID string) (bool, error)
	GetSyncStatus(ctx context.Context) (entity.SyncStatus, error)

	// Invariant probes for the verify command.
	GetTokenSupplyMismatches(ctx context.Context) ([]entity.TokenSupplyMismatch, error)
	GetNegativeBalances(ctx context.Context) ([]entity.TokenBalance, error)
	GetSpentLinkViolations(ctx context.Context) ([]entity.SpentLinkViolation, error)
}

type ExplorerWriterDataGateway interface {
	InsertBlock(ctx context.Context, block *entity.Block) error
	InsertTransactions(ctx context.Context, txs []*entity.Transaction) error
	InsertOutputs(ctx context.Context, outputs []*entity.Output) error
	InsertAssets(ctx context.Context, assets []*entity.Asset) error
	InsertInputs(ctx context.Context, inputs []*entity.Input) error
	// MarkOutputsSpent links consumed outputs to the spending transaction.
	MarkOutputsSpent(ctx context.Context, spends []SpendOutputParams) error
	// ApplyBalanceChanges journals the block's signed deltas and folds each
	// into token_balances in the same statement set.
	ApplyBalanceChanges(ctx context.Context, blockID string, deltas []BalanceDeltaParams) error
	UpsertToken(ctx context.Context, token *entity.Token) error
	InsertMiningReward(ctx context.Context, reward *entity.MiningReward) error
	// UpdateAddressStats folds per-block activity into address_stats: first
	// active height keeps the minimum, last active the maximum, tx counts add.
	UpdateAddressStats(ctx context.Context, stats []*entity.AddressStats) error
	UpdateSyncStatus(ctx context.Context, status entity.SyncStatus) error
	InsertPoisonBlock(ctx context.Context, poison entity.PoisonBlock) error
	// RevertDataSinceHeight rewinds every block at height >= sinceHeight:
	// reverses journaled deltas, unlinks spends pointing at removed
	// transactions, deletes child rows, flips blocks.main_chain to false and
	// moves sync_status back.
	RevertDataSinceHeight(ctx context.Context, sinceHeight int64) error
}

type SpendOutputParams struct {
	BoxID string
	TxID  string
}

type BalanceDeltaParams struct {
	TokenID string
	Address string
	Delta   int64
}
