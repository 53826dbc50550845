package types

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/shark-explorer/shark-indexer/pkg/ergotree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testP2PKTree = "0008cd0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	testP2STree  = "100204a00b08cd0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ea02d192a39a8cc7a7017300730110010204020404"
)

func hexID(b byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

func validFullBlock() *ergoclient.FullBlock {
	return &ergoclient.FullBlock{
		Header: ergoclient.BlockHeader{
			ID:         hexID(0x11),
			ParentID:   hexID(0x10),
			Height:     100,
			Version:    2,
			Timestamp:  1700000000000,
			Difficulty: 123456,
			Votes:      "000000",
			PowSolutions: ergoclient.PowSolutions{
				PK: "02bb05",
				N:  "0011223344556677",
			},
		},
		BlockTransactions: ergoclient.BlockTransactions{
			HeaderID: hexID(0x11),
			Transactions: []ergoclient.Transaction{
				{
					ID: hexID(0xaa),
					Inputs: []ergoclient.TxInput{
						{BoxID: hexID(0x01), SpendingProof: &ergoclient.SpendingProof{ProofBytes: "aabb"}},
					},
					Outputs: []ergoclient.TxOutput{
						{
							BoxID:          hexID(0x02),
							Value:          1000,
							ErgoTree:       testP2PKTree,
							CreationHeight: 100,
							Assets: []ergoclient.Asset{
								{TokenID: hexID(0x03), Amount: 5},
								{TokenID: hexID(0x05), Amount: 7},
							},
							AdditionalRegisters: map[string]string{"R4": "0e03534947"},
						},
						{
							BoxID:          hexID(0x04),
							Value:          2000,
							ErgoTree:       testP2STree,
							CreationHeight: 100,
						},
					},
				},
				{
					ID:      hexID(0xbb),
					Inputs:  []ergoclient.TxInput{{BoxID: hexID(0x02)}},
					Outputs: []ergoclient.TxOutput{{BoxID: hexID(0x06), Value: 500, ErgoTree: testP2PKTree, CreationHeight: 100}},
				},
			},
			Size: 777,
		},
		Size: 999,
	}
}

func TestParseFullBlock(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		block, err := ParseFullBlock(validFullBlock(), common.NetworkMainnet)
		require.NoError(t, err)

		assert.Equal(t, hexID(0x11), block.Header.ID)
		assert.Equal(t, hexID(0x10), block.Header.ParentID)
		assert.Equal(t, int64(100), block.Header.Height)
		assert.Equal(t, time.UnixMilli(1700000000000), block.Header.Timestamp)
		assert.Equal(t, int64(123456), block.Header.Difficulty)
		assert.Equal(t, int64(999), block.Size)
		assert.Equal(t, int64(777), block.TxsSize)

		require.Len(t, block.Transactions, 2)
		first, second := block.Transactions[0], block.Transactions[1]
		assert.Equal(t, int32(0), first.Index)
		assert.Equal(t, int32(1), second.Index)
		assert.Equal(t, hexID(0x11), first.BlockID)
		assert.Equal(t, int64(100), first.BlockHeight)

		require.Len(t, first.Inputs, 1)
		assert.Equal(t, hexID(0x01), first.Inputs[0].BoxID)
		assert.Equal(t, int32(0), first.Inputs[0].Index)
		assert.Equal(t, "aabb", first.Inputs[0].ProofBytes)

		require.Len(t, first.Outputs, 2)
		assert.Equal(t, int32(0), first.Outputs[0].Index)
		assert.Equal(t, int32(1), first.Outputs[1].Index)
		assert.Equal(t, ergotree.AddressP2PK, first.Outputs[0].AddressType)
		assert.Equal(t, ergotree.AddressP2S, first.Outputs[1].AddressType)
		assert.NotEmpty(t, first.Outputs[0].Address)
		assert.Equal(t, map[string]string{"R4": "0e03534947"}, first.Outputs[0].Registers)

		require.Len(t, first.Outputs[0].Assets, 2)
		assert.Equal(t, int32(0), first.Outputs[0].Assets[0].Index)
		assert.Equal(t, int32(1), first.Outputs[0].Assets[1].Index)
		assert.Equal(t, int64(5), first.Outputs[0].Assets[0].Amount)
	})

	t.Run("deterministic", func(t *testing.T) {
		left, err := ParseFullBlock(validFullBlock(), common.NetworkMainnet)
		require.NoError(t, err)
		right, err := ParseFullBlock(validFullBlock(), common.NetworkMainnet)
		require.NoError(t, err)
		assert.Equal(t, left, right)
	})

	t.Run("network_changes_addresses", func(t *testing.T) {
		mainnet, err := ParseFullBlock(validFullBlock(), common.NetworkMainnet)
		require.NoError(t, err)
		testnet, err := ParseFullBlock(validFullBlock(), common.NetworkTestnet)
		require.NoError(t, err)
		assert.NotEqual(t, mainnet.Transactions[0].Outputs[0].Address, testnet.Transactions[0].Outputs[0].Address)
	})

	t.Run("genesis_block_may_be_empty", func(t *testing.T) {
		src := validFullBlock()
		src.Header.Height = 1
		src.BlockTransactions.Transactions = nil
		block, err := ParseFullBlock(src, common.NetworkMainnet)
		require.NoError(t, err)
		assert.Empty(t, block.Transactions)
	})

	t.Run("bad_blocks", func(t *testing.T) {
		testcases := []struct {
			name   string
			mutate func(*ergoclient.FullBlock)
		}{
			{name: "malformed_block_id", mutate: func(b *ergoclient.FullBlock) { b.Header.ID = "xyz" }},
			{name: "malformed_parent_id", mutate: func(b *ergoclient.FullBlock) { b.Header.ParentID = hexID(0x10)[:10] }},
			{name: "negative_height", mutate: func(b *ergoclient.FullBlock) { b.Header.Height = -5 }},
			{name: "negative_timestamp", mutate: func(b *ergoclient.FullBlock) { b.Header.Timestamp = -1 }},
			{name: "body_header_mismatch", mutate: func(b *ergoclient.FullBlock) { b.BlockTransactions.HeaderID = hexID(0x99) }},
			{name: "no_transactions", mutate: func(b *ergoclient.FullBlock) { b.BlockTransactions.Transactions = nil }},
			{name: "malformed_tx_id", mutate: func(b *ergoclient.FullBlock) { b.BlockTransactions.Transactions[0].ID = "TX" }},
			{name: "tx_without_outputs", mutate: func(b *ergoclient.FullBlock) { b.BlockTransactions.Transactions[1].Outputs = nil }},
			{name: "malformed_input_box_id", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Inputs[0].BoxID = "0x01"
			}},
			{name: "malformed_output_box_id", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].BoxID = strings.ToUpper(hexID(0xab))
			}},
			{name: "negative_value", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].Value = -1
			}},
			{name: "foreign_transaction_id", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].TransactionID = hexID(0xbb)
			}},
			{name: "malformed_ergo_tree", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].ErgoTree = "zz"
			}},
			{name: "malformed_token_id", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].Assets[0].TokenID = "deadbeef"
			}},
			{name: "negative_asset_amount", mutate: func(b *ergoclient.FullBlock) {
				b.BlockTransactions.Transactions[0].Outputs[0].Assets[1].Amount = -7
			}},
		}
		for _, tc := range testcases {
			t.Run(tc.name, func(t *testing.T) {
				src := validFullBlock()
				tc.mutate(src)
				_, err := ParseFullBlock(src, common.NetworkMainnet)
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.BadBlock)
			})
		}
	})
}

func TestBlockHeaderInput(t *testing.T) {
	block, err := ParseFullBlock(validFullBlock(), common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, block.Header, block.BlockHeader())
}
