package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/datasources"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/internal/metrics"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

const (
	// defaultMaxReorgDepth bounds the fork point search. A fork deeper than
	// this needs manual intervention.
	defaultMaxReorgDepth = 720

	// defaultPollInterval is the default polling interval for the indexer polling worker
	defaultPollInterval = 5 * time.Second

	// transientBackoffMultiplier stretches the polling interval after a
	// transient failure so a struggling node is not hammered.
	transientBackoffMultiplier = 4
)

// Indexer generic indexer for fetching and processing data
type Indexer[T Input] struct {
	Processor  Processor[T]
	Datasource datasources.Datasource[T]

	// PollInterval is the delay between fetch rounds.
	PollInterval time.Duration

	// MaxReorgDepth bounds the walkback during fork point search.
	MaxReorgDepth int64

	// InitialHeight is the first height to ingest when nothing is indexed
	// yet. The datasource clamps it to the lowest height the node serves.
	InitialHeight int64

	currentBlock types.BlockHeader

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// New create new generic indexer
func New[T Input](processor Processor[T], datasource datasources.Datasource[T]) *Indexer[T] {
	return &Indexer[T]{
		Processor:     processor,
		Datasource:    datasource,
		PollInterval:  defaultPollInterval,
		MaxReorgDepth: defaultMaxReorgDepth,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (i *Indexer[T]) Shutdown() error {
	return i.ShutdownWithContext(context.Background())
}

func (i *Indexer[T]) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return i.ShutdownWithContext(ctx)
}

func (i *Indexer[T]) ShutdownWithContext(ctx context.Context) (err error) {
	i.quitOnce.Do(func() {
		close(i.quit)
		select {
		case <-i.done:
		case <-time.After(180 * time.Second):
			err = errors.Wrap(errs.Timeout, "indexer shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "indexer shutdown context canceled")
		}
	})
	return
}

func (i *Indexer[T]) Run(ctx context.Context) (err error) {
	defer close(i.done)

	ctx = logger.WithContext(ctx,
		slog.String("package", "indexer"),
		slog.String("processor", i.Processor.Name()),
		slog.String("datasource", i.Datasource.Name()),
	)

	// no indexed tip yet: settle right below the first height to ingest and
	// leave the id empty so the first batch skips the parent check
	i.currentBlock, err = i.Processor.CurrentBlock(ctx)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return errors.Wrap(err, "can't init state, failed to get indexer current block")
		}
		i.currentBlock = types.BlockHeader{Height: i.InitialHeight - 1}
	}

	ticker := time.NewTicker(i.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping indexer")
			if err := i.Processor.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown processor", slogx.Error(err))
				return errors.Wrap(err, "processor shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := i.process(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errs.IsTransient(err) {
					logger.WarnContext(ctx, "Transient failure while processing, polling slowed down",
						slogx.Error(err),
						slogx.Duration("next_poll", i.PollInterval*transientBackoffMultiplier),
					)
					ticker.Reset(i.PollInterval * transientBackoffMultiplier)
					continue
				}
				logger.ErrorContext(ctx, "Indexer failed while processing", slogx.Error(err))
				return errors.Wrap(err, "process failed")
			}
			ticker.Reset(i.PollInterval)
			logger.DebugContext(ctx, "Waiting for next polling interval")
		}
	}
}

func (i *Indexer[T]) process(ctx context.Context) (err error) {
	// height range to fetch data
	from, to := i.currentBlock.Height+1, int64(-1)

	logger.InfoContext(ctx, "Start fetching input data", slog.Int64("from", from))
	ch := make(chan []T)
	subscription, err := i.Datasource.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return errors.Wrap(err, "failed to fetch input data")
	}
	defer subscription.Unsubscribe()

	for {
		select {
		case <-i.quit:
			return nil
		case inputs := <-ch:
			// empty inputs
			if len(inputs) == 0 {
				continue
			}

			firstInput := inputs[0]
			firstInputHeader := firstInput.BlockHeader()

			startAt := time.Now()
			ctx := logger.WithContext(ctx,
				slogx.Int64("from", firstInputHeader.Height),
				slogx.Int64("to", inputs[len(inputs)-1].BlockHeader().Height),
			)

			// validate reorg from first input; skipped on a fresh start
			// when no tip is indexed yet
			if i.currentBlock.ID != "" && firstInputHeader.ParentID != i.currentBlock.ID {
				if err := i.repairReorg(ctx, firstInputHeader); err != nil {
					return errors.WithStack(err)
				}
				// end current round to fetch again from the fork point
				return nil
			}

			// validate is input is continuous and no reorg
			for n := 1; n < len(inputs); n++ {
				header := inputs[n].BlockHeader()
				prevHeader := inputs[n-1].BlockHeader()
				if header.Height != prevHeader.Height+1 {
					return errors.Wrapf(errs.InternalError, "input is not continuous, input[%d] height: %d, input[%d] height: %d", n-1, prevHeader.Height, n, header.Height)
				}

				if header.ParentID != prevHeader.ID {
					logger.WarnContext(ctx, "Chain reorganization occurred in the middle of batch fetching inputs, need to try to fetch again")

					// end current round
					return nil
				}
			}

			ctx = logger.WithContext(ctx, slog.Int("total_inputs", len(inputs)))

			// Start processing input
			logger.InfoContext(ctx, "Processing inputs")
			if err := i.Processor.Process(ctx, inputs); err != nil {
				return errors.WithStack(err)
			}

			// Update current state
			i.currentBlock = inputs[len(inputs)-1].BlockHeader()
			metrics.CurrentHeight.Set(float64(i.currentBlock.Height))
			metrics.IndexedBlocks.Add(float64(len(inputs)))

			logger.InfoContext(ctx, "Processed inputs successfully",
				slogx.String("event", "processed_inputs"),
				slogx.Int64("current_block", i.currentBlock.Height),
				slogx.Duration("duration", time.Since(startAt)),
			)
		case <-subscription.Done():
			// end current round
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context done")
			}
			return nil
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case err := <-subscription.Err():
			if err != nil {
				return errors.Wrap(err, "got error while fetch async")
			}
		}
	}
}

// repairReorg walks back from the indexed tip until the indexed chain and
// the node agree, reverts everything above the fork point and resets the
// current block so the next round refetches the replaced range.
func (i *Indexer[T]) repairReorg(ctx context.Context, firstInputHeader types.BlockHeader) error {
	logger.WarnContext(ctx, "Detected chain reorganization. Searching for fork point...",
		slogx.String("event", "reorg_detected"),
		slogx.String("current_id", i.currentBlock.ID),
		slogx.String("expected_parent_id", firstInputHeader.ParentID),
	)

	var (
		start          = time.Now()
		targetHeight   = i.currentBlock.Height
		forkPointFound = false
		forkPoint      types.BlockHeader
	)
	for n := int64(0); n < i.MaxReorgDepth; n++ {
		indexedHeader, err := i.Processor.GetIndexedBlockHeader(ctx, targetHeight)
		if err != nil {
			if errors.Is(err, errs.NotFound) {
				return errors.Wrapf(errs.ReorgTooDeep, "no indexed block at height %d while searching for fork point", targetHeight)
			}
			return errors.Wrapf(err, "failed to get indexed block header, height: %d", targetHeight)
		}

		remoteHeader, err := i.Datasource.GetBlockHeader(ctx, targetHeight)
		if err != nil {
			return errors.Wrapf(err, "failed to get remote block header, height: %d", targetHeight)
		}

		// found the fork point
		if indexedHeader.ID == remoteHeader.ID {
			forkPoint = remoteHeader
			forkPointFound = true
			break
		}

		// Walk back to find fork point
		targetHeight -= 1
	}

	if !forkPointFound {
		return errors.Wrapf(errs.ReorgTooDeep, "no fork point within %d blocks below the indexed tip %d", i.MaxReorgDepth, i.currentBlock.Height)
	}

	logger.InfoContext(ctx, "Found reorg fork point, starting to revert data...",
		slogx.String("event", "reorg_forkpoint"),
		slogx.Int64("since", forkPoint.Height+1),
		slogx.Int64("total_blocks", i.currentBlock.Height-forkPoint.Height),
		slogx.Duration("search_duration", time.Since(start)),
	)

	// Revert all data since the reorg block
	start = time.Now()
	if err := i.Processor.RevertData(ctx, forkPoint.Height+1); err != nil {
		return errors.Wrap(err, "failed to revert data")
	}

	i.currentBlock = forkPoint
	metrics.ChainReorgEvents.Inc()
	metrics.CurrentHeight.Set(float64(i.currentBlock.Height))
	logger.InfoContext(ctx, "Fixing chain reorganization completed",
		slogx.Int64("current_block", i.currentBlock.Height),
		slogx.Duration("duration", time.Since(start)),
	)
	return nil
}
