package types

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
)

type BlockHeader struct {
	ID           string
	ParentID     string
	Height       int64
	Version      int32
	Timestamp    time.Time
	Difficulty   int64
	Votes        string
	PowSolutions PowSolutions
}

// PowSolutions is the autolykos solution attached to a header. The d
// component may exceed 64 bits and is kept raw.
type PowSolutions struct {
	PK string          `json:"pk"`
	W  string          `json:"w"`
	N  string          `json:"n"`
	D  json.RawMessage `json:"d,omitempty"`
}

type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
	Size         int64
	TxsSize      int64
}

// BlockHeader implements the indexer input contract.
func (b *Block) BlockHeader() BlockHeader {
	return b.Header
}

// ParseFullBlock converts a node full block to the indexed representation.
// It is pure: the same input always yields the same output and malformed
// blocks are rejected with errs.BadBlock.
func ParseFullBlock(src *ergoclient.FullBlock, network common.Network) (*Block, error) {
	header := src.Header
	if !common.IsHexID(header.ID) {
		return nil, errors.Wrapf(errs.BadBlock, "malformed block id %q", header.ID)
	}
	if !common.IsHexID(header.ParentID) {
		return nil, errors.Wrapf(errs.BadBlock, "malformed parent id %q of block %s", header.ParentID, header.ID)
	}
	if header.Height < 0 {
		return nil, errors.Wrapf(errs.BadBlock, "negative height %d of block %s", header.Height, header.ID)
	}
	if header.Timestamp < 0 {
		return nil, errors.Wrapf(errs.BadBlock, "negative timestamp %d of block %s", header.Timestamp, header.ID)
	}
	body := src.BlockTransactions
	if body.HeaderID != "" && body.HeaderID != header.ID {
		return nil, errors.Wrapf(errs.BadBlock, "body header id %q disagrees with header id %q", body.HeaderID, header.ID)
	}
	// every block past genesis carries at least the emission transaction
	if len(body.Transactions) == 0 && header.Height > 1 {
		return nil, errors.Wrapf(errs.BadBlock, "block %s at height %d has no transactions", header.ID, header.Height)
	}

	transactions := make([]*Transaction, 0, len(body.Transactions))
	for index, rawTx := range body.Transactions {
		transaction, err := ParseTransaction(rawTx, header.Height, header.ID, int32(index), network)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		transactions = append(transactions, transaction)
	}

	return &Block{
		Header:       ParseBlockHeader(header),
		Transactions: transactions,
		Size:         src.Size,
		TxsSize:      body.Size,
	}, nil
}

// ParseBlockHeader converts a node header to the indexed representation.
func ParseBlockHeader(src ergoclient.BlockHeader) BlockHeader {
	return BlockHeader{
		ID:         src.ID,
		ParentID:   src.ParentID,
		Height:     src.Height,
		Version:    src.Version,
		Timestamp:  time.UnixMilli(src.Timestamp),
		Difficulty: int64(src.Difficulty),
		Votes:      src.Votes,
		PowSolutions: PowSolutions{
			PK: src.PowSolutions.PK,
			W:  src.PowSolutions.W,
			N:  src.PowSolutions.N,
			D:  src.PowSolutions.D,
		},
	}
}
