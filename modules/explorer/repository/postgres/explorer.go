package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

var _ datagateway.ExplorerDataGateway = (*Repository)(nil)

const selectLatestBlockHeaderSQL = `
SELECT id, parent_id, height, version, timestamp_ms, difficulty, votes, pow_solutions
FROM blocks
WHERE main_chain
ORDER BY height DESC
LIMIT 1;
`

func (r *Repository) GetLatestIndexedBlockHeader(ctx context.Context) (types.BlockHeader, error) {
	var m blockHeaderModel
	err := r.q().QueryRow(ctx, selectLatestBlockHeaderSQL).Scan(
		&m.ID, &m.ParentID, &m.Height, &m.Version, &m.TimestampMs, &m.Difficulty, &m.Votes, &m.PowSolutions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.BlockHeader{}, errors.WithStack(errs.NotFound)
		}
		return types.BlockHeader{}, errors.Wrap(err, "error during query")
	}
	header, err := mapBlockHeaderModelToType(m)
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to parse block header model")
	}
	return header, nil
}

const selectBlockHeaderByHeightSQL = `
SELECT id, parent_id, height, version, timestamp_ms, difficulty, votes, pow_solutions
FROM blocks
WHERE main_chain AND height = $1;
`

func (r *Repository) GetIndexedBlockHeaderByHeight(ctx context.Context, height int64) (types.BlockHeader, error) {
	var m blockHeaderModel
	err := r.q().QueryRow(ctx, selectBlockHeaderByHeightSQL, height).Scan(
		&m.ID, &m.ParentID, &m.Height, &m.Version, &m.TimestampMs, &m.Difficulty, &m.Votes, &m.PowSolutions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.BlockHeader{}, errors.WithStack(errs.NotFound)
		}
		return types.BlockHeader{}, errors.Wrap(err, "error during query")
	}
	header, err := mapBlockHeaderModelToType(m)
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to parse block header model")
	}
	return header, nil
}

const selectOutputsByBoxIDsSQL = `
SELECT box_id, tx_id, header_id, value, creation_height, index_in_tx, ergo_tree, address, address_type, additional_registers, spent_by_tx_id
FROM outputs
WHERE box_id = ANY($1);
`

const selectAssetsByBoxIDsSQL = `
SELECT box_id, token_id, header_id, index_in_output, amount
FROM assets
WHERE box_id = ANY($1)
ORDER BY box_id, index_in_output;
`

func (r *Repository) GetOutputsByBoxIDs(ctx context.Context, boxIDs []string) (map[string]*entity.Output, error) {
	if len(boxIDs) == 0 {
		return map[string]*entity.Output{}, nil
	}
	boxIDs = lo.Uniq(boxIDs)

	rows, err := r.q().Query(ctx, selectOutputsByBoxIDsSQL, boxIDs)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	outputs := make(map[string]*entity.Output, len(boxIDs))
	for rows.Next() {
		var m outputModel
		if err := rows.Scan(
			&m.BoxID, &m.TxID, &m.HeaderID, &m.Value, &m.CreationHeight, &m.Index,
			&m.ErgoTree, &m.Address, &m.AddressType, &m.Registers, &m.SpentByTxID,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan output row")
		}
		output, err := mapOutputModelToType(m)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse output model")
		}
		outputs[output.BoxID] = output
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iterate rows")
	}
	rows.Close()

	assetRows, err := r.q().Query(ctx, selectAssetsByBoxIDsSQL, boxIDs)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer assetRows.Close()

	for assetRows.Next() {
		var asset entity.Asset
		if err := assetRows.Scan(&asset.BoxID, &asset.TokenID, &asset.HeaderID, &asset.Index, &asset.Amount); err != nil {
			return nil, errors.Wrap(err, "failed to scan asset row")
		}
		output, ok := outputs[asset.BoxID]
		if !ok {
			return nil, errors.Wrapf(errs.InternalError, "asset row references box %s outside the queried set", asset.BoxID)
		}
		output.Assets = append(output.Assets, &asset)
	}
	if err := assetRows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iterate rows")
	}
	return outputs, nil
}

const existsBalanceChangesSQL = `
SELECT EXISTS (SELECT 1 FROM balance_changes WHERE block_id = $1);
`

func (r *Repository) HasBalanceChanges(ctx context.Context, blockID string) (bool, error) {
	var exists bool
	if err := r.q().QueryRow(ctx, existsBalanceChangesSQL, blockID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "error during query")
	}
	return exists, nil
}

const selectSyncStatusSQL = `
SELECT current_height, target_height, is_syncing, last_block_time_ms, updated_at
FROM sync_status
WHERE id = 1;
`

func (r *Repository) GetSyncStatus(ctx context.Context) (entity.SyncStatus, error) {
	var m syncStatusModel
	err := r.q().QueryRow(ctx, selectSyncStatusSQL).Scan(
		&m.CurrentHeight, &m.TargetHeight, &m.IsSyncing, &m.LastBlockTimeMs, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.SyncStatus{}, errors.WithStack(errs.NotFound)
		}
		return entity.SyncStatus{}, errors.Wrap(err, "error during query")
	}
	return mapSyncStatusModelToType(m), nil
}

const insertBlockSQL = `
INSERT INTO blocks (id, height, parent_id, version, timestamp_ms, difficulty, block_size, block_coins, txs_count, txs_size, miner_address, main_chain, pow_solutions, votes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET main_chain = EXCLUDED.main_chain;
`

func (r *Repository) InsertBlock(ctx context.Context, block *entity.Block) error {
	if block == nil {
		return nil
	}
	params, err := mapBlockTypeToParams(*block)
	if err != nil {
		return errors.Wrap(err, "failed to map block to params")
	}
	if _, err := r.q().Exec(ctx, insertBlockSQL,
		params.ID, params.Height, params.ParentID, params.Version, params.TimestampMs,
		params.Difficulty, params.BlockSize, params.BlockCoins, params.TxsCount, params.TxsSize,
		params.MinerAddress, params.MainChain, params.PowSolutions, params.Votes,
	); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

const insertTransactionSQL = `
INSERT INTO transactions (id, block_id, index_in_block, timestamp_ms, size, fee, coinbase, main_chain)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING;
`

func (r *Repository) InsertTransactions(ctx context.Context, txs []*entity.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(insertTransactionSQL,
			tx.ID, tx.BlockID, tx.Index, tx.Timestamp.UnixMilli(), tx.Size, tx.Fee, tx.Coinbase, tx.MainChain,
		)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec InsertTransactions")
}

const insertOutputSQL = `
INSERT INTO outputs (box_id, tx_id, header_id, value, creation_height, index_in_tx, ergo_tree, address, address_type, additional_registers)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (box_id) DO NOTHING;
`

func (r *Repository) InsertOutputs(ctx context.Context, outputs []*entity.Output) error {
	if len(outputs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, output := range outputs {
		params, err := mapOutputTypeToParams(*output)
		if err != nil {
			return errors.Wrap(err, "failed to map output to params")
		}
		batch.Queue(insertOutputSQL,
			params.BoxID, params.TxID, params.HeaderID, params.Value, params.CreationHeight,
			params.Index, params.ErgoTree, params.Address, params.AddressType, params.Registers,
		)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec InsertOutputs")
}

const insertAssetSQL = `
INSERT INTO assets (box_id, token_id, header_id, index_in_output, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (box_id, index_in_output) DO NOTHING;
`

func (r *Repository) InsertAssets(ctx context.Context, assets []*entity.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, asset := range assets {
		batch.Queue(insertAssetSQL, asset.BoxID, asset.TokenID, asset.HeaderID, asset.Index, asset.Amount)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec InsertAssets")
}

const insertInputSQL = `
INSERT INTO inputs (box_id, tx_id, header_id, index_in_tx, proof_bytes, extension)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tx_id, index_in_tx) DO NOTHING;
`

func (r *Repository) InsertInputs(ctx context.Context, inputs []*entity.Input) error {
	if len(inputs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, input := range inputs {
		params, err := mapInputTypeToParams(*input)
		if err != nil {
			return errors.Wrap(err, "failed to map input to params")
		}
		batch.Queue(insertInputSQL,
			params.BoxID, params.TxID, params.HeaderID, params.Index, params.ProofBytes, params.Extension,
		)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec InsertInputs")
}

const markOutputSpentSQL = `
UPDATE outputs SET spent_by_tx_id = $2 WHERE box_id = $1;
`

func (r *Repository) MarkOutputsSpent(ctx context.Context, spends []datagateway.SpendOutputParams) error {
	if len(spends) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, spend := range spends {
		batch.Queue(markOutputSpentSQL, spend.BoxID, spend.TxID)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec MarkOutputsSpent")
}

const insertBalanceChangeSQL = `
INSERT INTO balance_changes (block_id, token_id, address, delta)
VALUES ($1, $2, $3, $4)
ON CONFLICT (block_id, token_id, address) DO NOTHING;
`

const applyBalanceDeltaSQL = `
INSERT INTO token_balances (token_id, address, balance, last_updated)
VALUES ($1, $2, $3, now())
ON CONFLICT (token_id, address) DO UPDATE
SET balance = token_balances.balance + EXCLUDED.balance, last_updated = now();
`

func (r *Repository) ApplyBalanceChanges(ctx context.Context, blockID string, deltas []datagateway.BalanceDeltaParams) error {
	if len(deltas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, delta := range deltas {
		batch.Queue(insertBalanceChangeSQL, blockID, delta.TokenID, delta.Address, delta.Delta)
		batch.Queue(applyBalanceDeltaSQL, delta.TokenID, delta.Address, delta.Delta)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec ApplyBalanceChanges")
}

const insertTokenSQL = `
INSERT INTO tokens (token_id, minting_tx_id, minting_box_id, first_seen_height, name, description, decimals, supply)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (token_id) DO NOTHING;
`

func (r *Repository) UpsertToken(ctx context.Context, token *entity.Token) error {
	if token == nil {
		return nil
	}
	if _, err := r.q().Exec(ctx, insertTokenSQL,
		token.TokenID, token.MintingTxID, token.MintingBoxID, token.FirstSeenHeight,
		token.Name, token.Description, token.Decimals, token.Supply,
	); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

const insertMiningRewardSQL = `
INSERT INTO mining_rewards (block_id, height, miner_address, reward, fees)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (block_id) DO NOTHING;
`

func (r *Repository) InsertMiningReward(ctx context.Context, reward *entity.MiningReward) error {
	if reward == nil {
		return nil
	}
	if _, err := r.q().Exec(ctx, insertMiningRewardSQL,
		reward.BlockID, reward.Height, reward.MinerAddress, reward.Reward, reward.Fees,
	); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

const upsertAddressStatsSQL = `
INSERT INTO address_stats (address, first_active_height, last_active_height, tx_count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (address) DO UPDATE
SET first_active_height = LEAST(address_stats.first_active_height, EXCLUDED.first_active_height),
    last_active_height = GREATEST(address_stats.last_active_height, EXCLUDED.last_active_height),
    tx_count = address_stats.tx_count + EXCLUDED.tx_count;
`

func (r *Repository) UpdateAddressStats(ctx context.Context, stats []*entity.AddressStats) error {
	if len(stats) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, stat := range stats {
		batch.Queue(upsertAddressStatsSQL, stat.Address, stat.FirstActiveHeight, stat.LastActiveHeight, stat.TxCount)
	}
	return errors.Wrap(execBatch(ctx, r.q(), batch), "error during exec UpdateAddressStats")
}

const upsertSyncStatusSQL = `
INSERT INTO sync_status (id, current_height, target_height, is_syncing, last_block_time_ms, updated_at)
VALUES (1, $1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE
SET current_height = EXCLUDED.current_height,
    target_height = EXCLUDED.target_height,
    is_syncing = EXCLUDED.is_syncing,
    last_block_time_ms = EXCLUDED.last_block_time_ms,
    updated_at = now();
`

func (r *Repository) UpdateSyncStatus(ctx context.Context, status entity.SyncStatus) error {
	if _, err := r.q().Exec(ctx, upsertSyncStatusSQL,
		status.CurrentHeight, status.TargetHeight, status.IsSyncing, status.LastBlockTime.UnixMilli(),
	); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

const insertPoisonBlockSQL = `
INSERT INTO poison_blocks (block_id, height, reason)
VALUES ($1, $2, $3)
ON CONFLICT (block_id) DO UPDATE SET reason = EXCLUDED.reason;
`

func (r *Repository) InsertPoisonBlock(ctx context.Context, poison entity.PoisonBlock) error {
	if _, err := r.q().Exec(ctx, insertPoisonBlockSQL, poison.BlockID, poison.Height, poison.Reason); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

// execBatch sends the batch and surfaces the first statement error with its
// queue position.
func execBatch(ctx context.Context, q queryable, batch *pgx.Batch) error {
	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return errors.Wrapf(err, "batch statement %d", i)
		}
	}
	return errors.Wrap(results.Close(), "failed to close batch results")
}
