package datasources

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTree = "0008cd0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func heightID(height int64) string {
	return fmt.Sprintf("%064x", height)
}

// fakeNode serves a deterministic chain. Lookups of later heights resolve
// faster than earlier ones to expose ordering bugs in the fetch pool.
type fakeNode struct {
	tip        int64
	failHeight int64
	skewDelay  bool
}

var _ ergoclient.Contract = (*fakeNode)(nil)

func (f *fakeNode) Info(ctx context.Context) (*ergoclient.NodeInfo, error) {
	return &ergoclient.NodeInfo{FullHeight: f.tip, HeadersHeight: f.tip}, nil
}

func (f *fakeNode) BlockIDsAtHeight(ctx context.Context, height int64) ([]string, error) {
	if height < 1 || height > f.tip {
		return nil, errors.Wrapf(errs.NotFound, "no block at height %d", height)
	}
	return []string{heightID(height)}, nil
}

func (f *fakeNode) BlockByID(ctx context.Context, id string) (*ergoclient.FullBlock, error) {
	var height int64
	if _, err := fmt.Sscanf(id, "%x", &height); err != nil {
		return nil, errors.Wrapf(errs.NotFound, "unknown block %s", id)
	}
	if f.failHeight > 0 && height == f.failHeight {
		return nil, errors.Wrap(errs.Unavailable, "node is busy")
	}
	if f.skewDelay {
		time.Sleep(time.Duration(f.tip-height) * time.Millisecond)
	}
	return &ergoclient.FullBlock{
		Header: ergoclient.BlockHeader{
			ID:        heightID(height),
			ParentID:  heightID(height - 1),
			Height:    height,
			Timestamp: 1700000000000 + height,
		},
		BlockTransactions: ergoclient.BlockTransactions{
			HeaderID: heightID(height),
			Transactions: []ergoclient.Transaction{
				{
					ID:      fmt.Sprintf("%064x", 0x100000+height),
					Inputs:  []ergoclient.TxInput{{BoxID: fmt.Sprintf("%064x", 0x200000+height)}},
					Outputs: []ergoclient.TxOutput{{BoxID: fmt.Sprintf("%064x", 0x300000+height), Value: 1000 + height, ErgoTree: testTree, CreationHeight: height}},
				},
			},
		},
	}, nil
}

func (f *fakeNode) HeaderByID(ctx context.Context, id string) (*ergoclient.BlockHeader, error) {
	block, err := f.BlockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &block.Header, nil
}

func (f *fakeNode) UnconfirmedTransactions(ctx context.Context, limit, offset int32) ([]ergoclient.Transaction, error) {
	return nil, nil
}

func TestFetchOrdering(t *testing.T) {
	node := &fakeNode{tip: 50, skewDelay: true}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{BatchSize: 5, MaxWorkers: 4})

	blocks, err := datasource.Fetch(context.Background(), 1, -1)
	require.NoError(t, err)
	require.Len(t, blocks, 50)

	for i, block := range blocks {
		assert.Equal(t, int64(i+1), block.Header.Height)
		assert.Equal(t, heightID(int64(i)), block.Header.ParentID)
	}
}

func TestFetchBoundedRange(t *testing.T) {
	node := &fakeNode{tip: 30}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{BatchSize: 4, MaxWorkers: 2})

	blocks, err := datasource.Fetch(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, blocks, 11)
	assert.Equal(t, int64(10), blocks[0].Header.Height)
	assert.Equal(t, int64(20), blocks[len(blocks)-1].Header.Height)
}

func TestFetchSkipsWhenCaughtUp(t *testing.T) {
	node := &fakeNode{tip: 5}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{})

	blocks, err := datasource.Fetch(context.Background(), 6, -1)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestFetchAsyncOrdering(t *testing.T) {
	node := &fakeNode{tip: 24, skewDelay: true}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{BatchSize: 3, MaxWorkers: 8})

	ch := make(chan []*types.Block)
	sub, err := datasource.FetchAsync(context.Background(), 1, -1, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	var got []*types.Block
loop:
	for {
		select {
		case blocks := <-ch:
			got = append(got, blocks...)
			if len(got) == 24 {
				break loop
			}
		case err := <-sub.Err():
			t.Fatalf("unexpected fetch error: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for blocks")
		}
	}

	for i, block := range got {
		assert.Equal(t, int64(i+1), block.Header.Height)
	}
}

func TestFetchErrorPropagation(t *testing.T) {
	node := &fakeNode{tip: 10, failHeight: 7}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{BatchSize: 2, MaxWorkers: 2})

	_, err := datasource.Fetch(context.Background(), 1, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Unavailable)
}

func TestSelfThrottling(t *testing.T) {
	node := &fakeNode{tip: 10, failHeight: 7}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{BatchSize: 2, MaxWorkers: 4})

	_, err := datasource.Fetch(context.Background(), 1, -1)
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return datasource.workers.Load() == 2
	}, time.Second, 10*time.Millisecond, "failed round should halve the worker count")

	_, err = datasource.Fetch(context.Background(), 1, -1)
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return datasource.workers.Load() == 1
	}, time.Second, 10*time.Millisecond, "worker count floor is 1")

	node.failHeight = 0
	blocks, err := datasource.Fetch(context.Background(), 1, -1)
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	require.Eventually(t, func() bool {
		return datasource.workers.Load() == 4
	}, time.Second, 10*time.Millisecond, "successful round should restore the configured maximum")
}

func TestGetBlockHeader(t *testing.T) {
	node := &fakeNode{tip: 10}
	datasource := NewErgoNode(node, common.NetworkMainnet, Options{})

	header, err := datasource.GetBlockHeader(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, heightID(4), header.ID)
	assert.Equal(t, heightID(3), header.ParentID)
	assert.Equal(t, int64(4), header.Height)

	_, err = datasource.GetBlockHeader(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotFound)
}
