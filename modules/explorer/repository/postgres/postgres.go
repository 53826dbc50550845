package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shark-explorer/shark-indexer/internal/postgres"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
)

type Repository struct {
	db postgres.DB
	tx pgx.Tx
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var ErrTxAlreadyExists = errors.New("Transaction already exists. Call CommitTx() or RollbackTx() first.")

// queryable is satisfied by both the pool and an open pgx.Tx.
type queryable interface {
	postgres.Queryable
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// q returns the open transaction when there is one, the pool otherwise.
func (r *Repository) q() queryable {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *Repository) BeginTx(ctx context.Context) (err error) {
	if r.tx != nil {
		return errors.WithStack(ErrTxAlreadyExists)
	}
	r.tx, err = r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	return nil
}

func (r *Repository) CommitTx(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Commit(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	r.tx = nil
	return nil
}

func (r *Repository) RollbackTx(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "failed to rollback transaction")
	}
	if err == nil {
		logger.InfoContext(ctx, "rolled back transaction")
	}
	r.tx = nil
	return nil
}
