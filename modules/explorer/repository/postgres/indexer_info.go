package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

var _ datagateway.IndexerInfoDataGateway = (*Repository)(nil)

const selectCurrentDBVersionSQL = `
SELECT db_version FROM indexer_states ORDER BY id DESC LIMIT 1;
`

func (r *Repository) GetCurrentDBVersion(ctx context.Context) (int32, error) {
	var version int32
	if err := r.q().QueryRow(ctx, selectCurrentDBVersionSQL).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.WithStack(errs.NotFound)
		}
		return 0, errors.Wrap(err, "error during query")
	}
	return version, nil
}

const selectCurrentNetworkSQL = `
SELECT network FROM indexer_states ORDER BY id DESC LIMIT 1;
`

func (r *Repository) GetCurrentNetwork(ctx context.Context) (common.Network, error) {
	var network string
	if err := r.q().QueryRow(ctx, selectCurrentNetworkSQL).Scan(&network); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errors.WithStack(errs.NotFound)
		}
		return "", errors.Wrap(err, "error during query")
	}
	return common.Network(network), nil
}

const insertIndexerStateSQL = `
INSERT INTO indexer_states (db_version, network) VALUES ($1, $2);
`

func (r *Repository) CreateIndexerState(ctx context.Context, state entity.IndexerState) error {
	if _, err := r.q().Exec(ctx, insertIndexerStateSQL, state.DBVersion, state.Network); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}
