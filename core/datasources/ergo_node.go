package datasources

import (
	"context"
	"sync/atomic"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/internal/subscription"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

const (
	defaultBatchSize  = 20
	defaultMaxWorkers = 8

	// firstBlockHeight is the height of the first block after the genesis
	// state. The node serves no block below it.
	firstBlockHeight = 1
)

// Make sure to implement the Datasource interface
var _ Datasource[*types.Block] = (*ErgoNodeDatasource)(nil)

// ErgoNodeDatasource fetches blocks from an Ergo node REST API with a
// bounded worker pool. Results are always emitted in ascending height order.
type ErgoNodeDatasource struct {
	client     ergoclient.Contract
	network    common.Network
	batchSize  int
	maxWorkers int
	workers    atomic.Int64
}

type Options struct {
	// BatchSize is the number of consecutive heights fetched by one task.
	BatchSize int

	// MaxWorkers bounds the number of concurrent fetch tasks.
	MaxWorkers int
}

func NewErgoNode(client ergoclient.Contract, network common.Network, opts Options) *ErgoNodeDatasource {
	d := &ErgoNodeDatasource{
		client:     client,
		network:    network,
		batchSize:  utils.Default(opts.BatchSize, defaultBatchSize),
		maxWorkers: utils.Default(opts.MaxWorkers, defaultMaxWorkers),
	}
	d.workers.Store(int64(d.maxWorkers))
	return d
}

func (d *ErgoNodeDatasource) Name() string {
	return "ergo_node"
}

// Fetch polling blocks from the Ergo node
//
//   - from: block height to start fetching, if -1, it will start from the first block
//   - to: block height to stop fetching, if -1, it will fetch until the latest block
func (d *ErgoNodeDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	ch := make(chan []*types.Block)
	subscription, err := d.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer subscription.Unsubscribe()

	blocks := make([]*types.Block, 0)
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return blocks, nil
			}
			blocks = append(blocks, b...)
		case <-subscription.Done():
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "context done")
			}
			return blocks, nil
		case err := <-subscription.Err():
			if err != nil {
				return nil, errors.Wrap(err, "got error while fetch async")
			}
			return blocks, nil
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context done")
		}
	}
}

// FetchAsync polling blocks from the Ergo node asynchronously (non-blocking)
//
//   - from: block height to start fetching, if -1, it will start from the first block
//   - to: block height to stop fetching, if -1, it will fetch until the latest block
func (d *ErgoNodeDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	ctx = logger.WithContext(ctx,
		slogx.String("package", "datasources"),
		slogx.String("datasource", d.Name()),
	)

	from, to, skip, err := d.prepareRange(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare fetch range")
	}

	subscription := subscription.NewSubscription(ch)
	if skip {
		if err := subscription.UnsubscribeWithContext(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to unsubscribe")
		}
		return subscription.Client(), nil
	}

	// Parallel stream with ordered output: results leave the stream in
	// submission order regardless of which worker finishes first.
	out := make(chan []*types.Block)
	stream := cstream.NewStream(ctx, int(d.workers.Load()), out)

	blockHeights := make([]int64, 0, to-from+1)
	for i := from; i <= to; i++ {
		blockHeights = append(blockHeights, i)
	}

	var roundFailed atomic.Bool

	// Wait for stream to finish, close out channel and adjust concurrency
	// for the next round.
	go func() {
		defer close(out)
		_ = stream.Wait()
		if roundFailed.Load() {
			d.throttle(ctx)
		} else {
			d.restore(ctx)
		}
	}()

	// Fan-out blocks to subscription channel
	go func() {
		defer subscription.Unsubscribe()
		for {
			select {
			case data, ok := <-out:
				// stream closed
				if !ok {
					return
				}

				// failed chunk
				if len(data) == 0 {
					continue
				}

				if err := subscription.Send(ctx, data); err != nil {
					logger.ErrorContext(ctx, "failed while dispatch blocks",
						slogx.Error(err),
						slogx.Int64("start", data[0].Header.Height),
						slogx.Int64("end", data[len(data)-1].Header.Height),
					)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Parallel fetch blocks from the Ergo node until complete all block
	// heights or subscription is done.
	go func() {
		defer stream.Close()
		done := subscription.Done()
		chunks := lo.Chunk(blockHeights, d.batchSize)
		for _, chunk := range chunks {
			chunk := chunk
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
				if len(chunk) == 0 {
					continue
				}
				stream.Go(func() []*types.Block {
					blocks, err := d.fetchChunk(ctx, chunk)
					if err != nil {
						roundFailed.Store(true)
						logger.ErrorContext(ctx, "failed to fetch blocks",
							slogx.Error(err),
							slogx.Int64("from_height", chunk[0]),
							slogx.Int64("to_height", chunk[len(chunk)-1]),
						)
						if err := subscription.SendError(ctx, errors.Wrapf(err, "failed to fetch blocks: from_height: %d, to_height: %d", chunk[0], chunk[len(chunk)-1])); err != nil {
							logger.ErrorContext(ctx, "failed to send error", slogx.Error(err))
						}
						return nil
					}
					return blocks
				})
			}
		}
	}()

	return subscription.Client(), nil
}

// GetBlockHeader returns the header of the main-chain block at the given
// height as reported by the node.
func (d *ErgoNodeDatasource) GetBlockHeader(ctx context.Context, height int64) (types.BlockHeader, error) {
	ids, err := d.client.BlockIDsAtHeight(ctx, height)
	if err != nil {
		return types.BlockHeader{}, errors.Wrapf(err, "failed to get block ids at height %d", height)
	}
	header, err := d.client.HeaderByID(ctx, ids[0])
	if err != nil {
		return types.BlockHeader{}, errors.Wrapf(err, "failed to get header %s", ids[0])
	}
	return types.ParseBlockHeader(*header), nil
}

func (d *ErgoNodeDatasource) fetchChunk(ctx context.Context, heights []int64) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0, len(heights))
	for _, height := range heights {
		ids, err := d.client.BlockIDsAtHeight(ctx, height)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get block ids at height %d", height)
		}
		raw, err := d.client.BlockByID(ctx, ids[0])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get block %s", ids[0])
		}
		block, err := types.ParseFullBlock(raw, d.network)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse block %s at height %d", ids[0], height)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (d *ErgoNodeDatasource) prepareRange(ctx context.Context, fromHeight, toHeight int64) (start, end int64, skip bool, err error) {
	start = fromHeight
	end = toHeight

	// get current chain tip from the node
	info, err := d.client.Info(ctx)
	if err != nil {
		return -1, -1, false, errors.Wrap(err, "failed to get node info")
	}

	if start < firstBlockHeight {
		start = firstBlockHeight
	}

	// set end to node tip if
	// - end is -1
	// - end is greater than node tip
	if end < 0 || end > info.FullHeight {
		end = info.FullHeight
	}

	// if start is greater than end, skip this round
	if start > end {
		return -1, -1, true, nil
	}

	return start, end, false, nil
}

func (d *ErgoNodeDatasource) throttle(ctx context.Context) {
	current := d.workers.Load()
	next := current / 2
	if next < 1 {
		next = 1
	}
	if next != current {
		d.workers.Store(next)
		logger.WarnContext(ctx, "reduced fetch concurrency after failed round",
			slogx.Int64("workers", next),
			slogx.Int("max_workers", d.maxWorkers),
		)
	}
}

func (d *ErgoNodeDatasource) restore(ctx context.Context) {
	if current := d.workers.Load(); current != int64(d.maxWorkers) {
		d.workers.Store(int64(d.maxWorkers))
		logger.InfoContext(ctx, "restored fetch concurrency after successful round",
			slogx.Int("workers", d.maxWorkers),
		)
	}
}
