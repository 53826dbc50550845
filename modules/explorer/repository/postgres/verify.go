package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

// Live supply per token is the sum of amounts over unspent outputs; the
// native coin is folded in under its synthetic token id. A healthy database
// returns no rows from any of these queries.
const selectTokenSupplyMismatchesSQL = `
WITH live AS (
    SELECT a.token_id, COALESCE(SUM(a.amount), 0) AS supply
    FROM assets a
    JOIN outputs o ON o.box_id = a.box_id
    WHERE o.spent_by_tx_id IS NULL
    GROUP BY a.token_id
    UNION ALL
    SELECT $1, COALESCE(SUM(value), 0)
    FROM outputs
    WHERE spent_by_tx_id IS NULL
), aggregated AS (
    SELECT token_id, COALESCE(SUM(balance), 0) AS balance
    FROM token_balances
    GROUP BY token_id
)
SELECT COALESCE(l.token_id, agg.token_id) AS token_id,
       COALESCE(l.supply, 0) AS supply,
       COALESCE(agg.balance, 0) AS aggregated
FROM live l
FULL OUTER JOIN aggregated agg ON agg.token_id = l.token_id
WHERE COALESCE(l.supply, 0) <> COALESCE(agg.balance, 0)
ORDER BY 1;
`

func (r *Repository) GetTokenSupplyMismatches(ctx context.Context) ([]entity.TokenSupplyMismatch, error) {
	rows, err := r.q().Query(ctx, selectTokenSupplyMismatchesSQL, common.ErgTokenID)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	var mismatches []entity.TokenSupplyMismatch
	for rows.Next() {
		var m entity.TokenSupplyMismatch
		if err := rows.Scan(&m.TokenID, &m.Supply, &m.Aggregated); err != nil {
			return nil, errors.Wrap(err, "failed to scan mismatch row")
		}
		mismatches = append(mismatches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iterate rows")
	}
	return mismatches, nil
}

const selectNegativeBalancesSQL = `
SELECT token_id, address, balance
FROM token_balances
WHERE balance < 0
ORDER BY balance ASC;
`

func (r *Repository) GetNegativeBalances(ctx context.Context) ([]entity.TokenBalance, error) {
	rows, err := r.q().Query(ctx, selectNegativeBalancesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	var balances []entity.TokenBalance
	for rows.Next() {
		var b entity.TokenBalance
		if err := rows.Scan(&b.TokenID, &b.Address, &b.Balance); err != nil {
			return nil, errors.Wrap(err, "failed to scan balance row")
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iterate rows")
	}
	return balances, nil
}

const selectSpentLinkViolationsSQL = `
SELECT o.box_id, o.spent_by_tx_id, i.tx_id
FROM outputs o
LEFT JOIN inputs i ON i.box_id = o.box_id
WHERE o.spent_by_tx_id IS NOT NULL AND (i.tx_id IS NULL OR i.tx_id <> o.spent_by_tx_id)
UNION ALL
SELECT i.box_id, o.spent_by_tx_id, i.tx_id
FROM inputs i
LEFT JOIN outputs o ON o.box_id = i.box_id
WHERE i.box_id <> $1
  AND (o.box_id IS NULL OR o.spent_by_tx_id IS NULL OR o.spent_by_tx_id <> i.tx_id)
ORDER BY 1;
`

func (r *Repository) GetSpentLinkViolations(ctx context.Context) ([]entity.SpentLinkViolation, error) {
	rows, err := r.q().Query(ctx, selectSpentLinkViolationsSQL, common.ZeroID)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	var violations []entity.SpentLinkViolation
	for rows.Next() {
		var v entity.SpentLinkViolation
		if err := rows.Scan(&v.BoxID, &v.SpentByTxID, &v.InputTxID); err != nil {
			return nil, errors.Wrap(err, "failed to scan violation row")
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iterate rows")
	}
	return violations, nil
}
