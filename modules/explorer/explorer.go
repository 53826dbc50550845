package explorer

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/datasources"
	"github.com/shark-explorer/shark-indexer/core/indexer"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/internal/config"
	"github.com/shark-explorer/shark-indexer/internal/postgres"
	explorerapi "github.com/shark-explorer/shark-indexer/modules/explorer/api"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	explorerpostgres "github.com/shark-explorer/shark-indexer/modules/explorer/repository/postgres"
	explorerusecase "github.com/shark-explorer/shark-indexer/modules/explorer/usecase"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
)

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)

	var (
		explorerDg    datagateway.ExplorerDataGateway
		indexerInfoDg datagateway.IndexerInfoDataGateway
	)
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(conf.Explorer.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, conf.Explorer.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for indexer")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		explorerRepo := explorerpostgres.NewRepository(pg)
		explorerDg = explorerRepo
		indexerInfoDg = explorerRepo
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for indexer is not supported", conf.Explorer.Database)
	}

	var blockDatasource datasources.Datasource[*types.Block]
	var ergoClient ergoclient.Contract
	switch strings.ToLower(conf.Explorer.Datasource) {
	case "ergo-node":
		ergoClient = do.MustInvoke[ergoclient.Contract](injector)
		blockDatasource = datasources.NewErgoNode(ergoClient, conf.Network, datasources.Options{
			BatchSize:  conf.Explorer.BatchSize,
			MaxWorkers: conf.Explorer.MaxWorkers,
		})
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q datasource is not supported", conf.Explorer.Datasource)
	}

	processor := NewProcessor(explorerDg, indexerInfoDg, ergoClient, conf.Network, conf.Explorer.MaxBlockRetries, cleanupFuncs)
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Mount API
	apiHandlers := lo.Uniq(conf.Explorer.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			explorerUsecase := explorerusecase.New(explorerDg)
			explorerHTTPHandler := explorerapi.NewHTTPHandler(conf.Network, explorerUsecase)
			if err := explorerHTTPHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount Explorer API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	worker := indexer.New(processor, blockDatasource)
	if conf.Explorer.PollIntervalMs > 0 {
		worker.PollInterval = time.Duration(conf.Explorer.PollIntervalMs) * time.Millisecond
	}
	if conf.Explorer.MaxReorgDepth > 0 {
		worker.MaxReorgDepth = conf.Explorer.MaxReorgDepth
	}
	worker.InitialHeight = conf.Explorer.InitialHeight
	return worker, nil
}
