package explorer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/indexer"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

var _ indexer.Processor[*types.Block] = (*Processor)(nil)

type Processor struct {
	explorerDg      datagateway.ExplorerDataGateway
	indexerInfoDg   datagateway.IndexerInfoDataGateway
	ergoClient      ergoclient.Contract
	network         common.Network
	maxBlockRetries int
	cleanupFuncs    []func(context.Context) error
}

func NewProcessor(explorerDg datagateway.ExplorerDataGateway, indexerInfoDg datagateway.IndexerInfoDataGateway, ergoClient ergoclient.Contract, network common.Network, maxBlockRetries int, cleanupFuncs []func(context.Context) error) *Processor {
	return &Processor{
		explorerDg:      explorerDg,
		indexerInfoDg:   indexerInfoDg,
		ergoClient:      ergoClient,
		network:         network,
		maxBlockRetries: maxBlockRetries,
		cleanupFuncs:    cleanupFuncs,
	}
}

func (p *Processor) VerifyStates(ctx context.Context) error {
	if err := p.ensureValidState(ctx); err != nil {
		return errors.Wrap(err, "error during ensureValidState")
	}
	return nil
}

func (p *Processor) ensureValidState(ctx context.Context) error {
	dbVersion, err := p.indexerInfoDg.GetCurrentDBVersion(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get current db version")
	}
	// if not found, set indexer state
	if errors.Is(err, errs.NotFound) {
		if err := p.indexerInfoDg.CreateIndexerState(ctx, entity.IndexerState{
			DBVersion: DBVersion,
			Network:   p.network.String(),
		}); err != nil {
			return errors.Wrap(err, "failed to create indexer state")
		}
		return nil
	}
	if dbVersion != DBVersion {
		return errors.Wrapf(errs.ConflictSetting, "db version mismatch: current version is %d. Please upgrade to version %d", dbVersion, DBVersion)
	}

	network, err := p.indexerInfoDg.GetCurrentNetwork(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get current network")
	}
	if err == nil && network != p.network {
		return errors.Wrapf(errs.ConflictSetting, "network mismatch: latest indexed network is %q, configured network is %q. If you want to change the network, please reset the database", network, p.network)
	}
	return nil
}

func (p *Processor) Name() string {
	return "Explorer"
}

func (p *Processor) CurrentBlock(ctx context.Context) (types.BlockHeader, error) {
	blockHeader, err := p.explorerDg.GetLatestIndexedBlockHeader(ctx)
	if err != nil {
		// NotFound passes through so the indexer can settle on the
		// configured initial height
		return types.BlockHeader{}, errors.WithStack(err)
	}
	return blockHeader, nil
}

func (p *Processor) GetIndexedBlockHeader(ctx context.Context, height int64) (types.BlockHeader, error) {
	blockHeader, err := p.explorerDg.GetIndexedBlockHeaderByHeight(ctx, height)
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to get indexed block header")
	}
	return blockHeader, nil
}

func (p *Processor) RevertData(ctx context.Context, from int64) error {
	if err := p.explorerDg.BeginTx(ctx); err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := p.explorerDg.RollbackTx(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to rollback transaction", slogx.Error(err))
		}
	}()

	if err := p.explorerDg.RevertDataSinceHeight(ctx, from); err != nil {
		return errors.Wrap(err, "failed to revert data")
	}

	if err := p.explorerDg.CommitTx(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (p *Processor) Shutdown(ctx context.Context) error {
	var errList []error
	for _, cleanup := range p.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.WithStack(errors.Join(errList...))
}
