package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
)

func (u *Usecase) GetSyncStatus(ctx context.Context) (entity.SyncStatus, error) {
	status, err := u.explorerDg.GetSyncStatus(ctx)
	if err != nil {
		return entity.SyncStatus{}, errors.Wrap(err, "failed to get sync status")
	}
	return status, nil
}
