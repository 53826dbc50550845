package entity

import (
	"time"

	"github.com/shark-explorer/shark-indexer/core/types"
)

type Block struct {
	ID           string
	Height       int64
	ParentID     string
	Version      int32
	Timestamp    time.Time
	Difficulty   int64
	BlockSize    int64
	BlockCoins   int64
	TxsCount     int32
	TxsSize      int64
	MinerAddress string
	MainChain    bool
	PowSolutions types.PowSolutions
	Votes        string
}
