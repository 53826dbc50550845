package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

// Rewind statements run in this order inside the caller's transaction. The
// delta reversal and the spend unlinking join through rows the later deletes
// remove, and every join relies on blocks.main_chain still being true, so the
// main_chain flip comes last.
const (
	reverseBalanceDeltasSQL = `
UPDATE token_balances tb
SET balance = tb.balance - agg.delta, last_updated = now()
FROM (
    SELECT bc.token_id, bc.address, SUM(bc.delta) AS delta
    FROM balance_changes bc
    JOIN blocks b ON b.id = bc.block_id
    WHERE b.height >= $1 AND b.main_chain
    GROUP BY bc.token_id, bc.address
) agg
WHERE tb.token_id = agg.token_id AND tb.address = agg.address;
`

	deleteBalanceChangesSinceHeightSQL = `
DELETE FROM balance_changes bc
USING blocks b
WHERE b.id = bc.block_id AND b.height >= $1 AND b.main_chain;
`

	unlinkSpentOutputsSinceHeightSQL = `
UPDATE outputs o
SET spent_by_tx_id = NULL
FROM transactions t
JOIN blocks b ON b.id = t.block_id
WHERE b.height >= $1 AND b.main_chain AND o.spent_by_tx_id = t.id;
`

	deleteAssetsSinceHeightSQL = `
DELETE FROM assets a
USING blocks b
WHERE b.id = a.header_id AND b.height >= $1 AND b.main_chain;
`

	deleteInputsSinceHeightSQL = `
DELETE FROM inputs i
USING blocks b
WHERE b.id = i.header_id AND b.height >= $1 AND b.main_chain;
`

	deleteOutputsSinceHeightSQL = `
DELETE FROM outputs o
USING blocks b
WHERE b.id = o.header_id AND b.height >= $1 AND b.main_chain;
`

	deleteTransactionsSinceHeightSQL = `
DELETE FROM transactions t
USING blocks b
WHERE b.id = t.block_id AND b.height >= $1 AND b.main_chain;
`

	deleteMiningRewardsSinceHeightSQL = `
DELETE FROM mining_rewards m
USING blocks b
WHERE b.id = m.block_id AND b.height >= $1 AND b.main_chain;
`

	deleteTokensSinceHeightSQL = `
DELETE FROM tokens WHERE first_seen_height >= $1;
`

	orphanBlocksSinceHeightSQL = `
UPDATE blocks SET main_chain = FALSE WHERE height >= $1 AND main_chain;
`

	rewindSyncStatusSQL = `
UPDATE sync_status
SET current_height = $1 - 1, is_syncing = TRUE, updated_at = now()
WHERE id = 1;
`
)

func (r *Repository) RevertDataSinceHeight(ctx context.Context, sinceHeight int64) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"reverse balance deltas", reverseBalanceDeltasSQL},
		{"delete balance changes", deleteBalanceChangesSinceHeightSQL},
		{"unlink spent outputs", unlinkSpentOutputsSinceHeightSQL},
		{"delete assets", deleteAssetsSinceHeightSQL},
		{"delete inputs", deleteInputsSinceHeightSQL},
		{"delete outputs", deleteOutputsSinceHeightSQL},
		{"delete transactions", deleteTransactionsSinceHeightSQL},
		{"delete mining rewards", deleteMiningRewardsSinceHeightSQL},
		{"delete tokens", deleteTokensSinceHeightSQL},
		{"orphan blocks", orphanBlocksSinceHeightSQL},
		{"rewind sync status", rewindSyncStatusSQL},
	}
	for _, statement := range statements {
		tag, err := r.q().Exec(ctx, statement.sql, sinceHeight)
		if err != nil {
			return errors.Wrapf(err, "failed to %s since height %d", statement.name, sinceHeight)
		}
		logger.DebugContext(ctx, "Reverted explorer data",
			slogx.String("statement", statement.name),
			slogx.Int64("since_height", sinceHeight),
			slogx.Int64("rows_affected", tag.RowsAffected()),
		)
	}
	return nil
}
