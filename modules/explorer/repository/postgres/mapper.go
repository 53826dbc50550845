package postgres

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
	"github.com/shark-explorer/shark-indexer/pkg/ergotree"
)

// JSONB columns travel as raw JSON bytes. Empty maps are stored as '{}' so
// the column is never SQL NULL and round-trips to an empty map.

type blockHeaderModel struct {
	ID           string
	ParentID     string
	Height       int64
	Version      int32
	TimestampMs  int64
	Difficulty   int64
	Votes        string
	PowSolutions []byte
}

func mapBlockHeaderModelToType(m blockHeaderModel) (types.BlockHeader, error) {
	var pow types.PowSolutions
	if len(m.PowSolutions) > 0 {
		if err := json.Unmarshal(m.PowSolutions, &pow); err != nil {
			return types.BlockHeader{}, errors.Wrapf(err, "failed to parse pow solutions of block %s", m.ID)
		}
	}
	return types.BlockHeader{
		ID:           m.ID,
		ParentID:     m.ParentID,
		Height:       m.Height,
		Version:      m.Version,
		Timestamp:    time.UnixMilli(m.TimestampMs),
		Difficulty:   m.Difficulty,
		Votes:        m.Votes,
		PowSolutions: pow,
	}, nil
}

type insertBlockParams struct {
	ID           string
	Height       int64
	ParentID     string
	Version      int32
	TimestampMs  int64
	Difficulty   int64
	BlockSize    int64
	BlockCoins   int64
	TxsCount     int32
	TxsSize      int64
	MinerAddress string
	MainChain    bool
	PowSolutions []byte
	Votes        string
}

func mapBlockTypeToParams(b entity.Block) (insertBlockParams, error) {
	pow, err := json.Marshal(b.PowSolutions)
	if err != nil {
		return insertBlockParams{}, errors.Wrapf(err, "failed to marshal pow solutions of block %s", b.ID)
	}
	return insertBlockParams{
		ID:           b.ID,
		Height:       b.Height,
		ParentID:     b.ParentID,
		Version:      b.Version,
		TimestampMs:  b.Timestamp.UnixMilli(),
		Difficulty:   b.Difficulty,
		BlockSize:    b.BlockSize,
		BlockCoins:   b.BlockCoins,
		TxsCount:     b.TxsCount,
		TxsSize:      b.TxsSize,
		MinerAddress: b.MinerAddress,
		MainChain:    b.MainChain,
		PowSolutions: pow,
		Votes:        b.Votes,
	}, nil
}

type insertOutputParams struct {
	BoxID          string
	TxID           string
	HeaderID       string
	Value          int64
	CreationHeight int64
	Index          int32
	ErgoTree       string
	Address        string
	AddressType    int16
	Registers      []byte
}

func mapOutputTypeToParams(o entity.Output) (insertOutputParams, error) {
	registers, err := marshalStringMap(o.Registers)
	if err != nil {
		return insertOutputParams{}, errors.Wrapf(err, "failed to marshal registers of box %s", o.BoxID)
	}
	return insertOutputParams{
		BoxID:          o.BoxID,
		TxID:           o.TxID,
		HeaderID:       o.HeaderID,
		Value:          o.Value,
		CreationHeight: o.CreationHeight,
		Index:          o.Index,
		ErgoTree:       o.ErgoTree,
		Address:        o.Address,
		AddressType:    int16(o.AddressType),
		Registers:      registers,
	}, nil
}

type outputModel struct {
	BoxID          string
	TxID           string
	HeaderID       string
	Value          int64
	CreationHeight int64
	Index          int32
	ErgoTree       string
	Address        string
	AddressType    int16
	Registers      []byte
	SpentByTxID    *string
}

func mapOutputModelToType(m outputModel) (*entity.Output, error) {
	registers, err := unmarshalStringMap(m.Registers)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse registers of box %s", m.BoxID)
	}
	return &entity.Output{
		BoxID:          m.BoxID,
		TxID:           m.TxID,
		HeaderID:       m.HeaderID,
		Value:          m.Value,
		CreationHeight: m.CreationHeight,
		Index:          m.Index,
		ErgoTree:       m.ErgoTree,
		Address:        m.Address,
		AddressType:    ergotree.AddressType(m.AddressType),
		Registers:      registers,
		SpentByTxID:    m.SpentByTxID,
	}, nil
}

type insertInputParams struct {
	BoxID      string
	TxID       string
	HeaderID   string
	Index      int32
	ProofBytes string
	Extension  []byte
}

func mapInputTypeToParams(in entity.Input) (insertInputParams, error) {
	extension, err := marshalStringMap(in.Extension)
	if err != nil {
		return insertInputParams{}, errors.Wrapf(err, "failed to marshal extension of input %s of tx %s", in.BoxID, in.TxID)
	}
	return insertInputParams{
		BoxID:      in.BoxID,
		TxID:       in.TxID,
		HeaderID:   in.HeaderID,
		Index:      in.Index,
		ProofBytes: in.ProofBytes,
		Extension:  extension,
	}, nil
}

type syncStatusModel struct {
	CurrentHeight   int64
	TargetHeight    int64
	IsSyncing       bool
	LastBlockTimeMs int64
	UpdatedAt       time.Time
}

func mapSyncStatusModelToType(m syncStatusModel) entity.SyncStatus {
	return entity.SyncStatus{
		CurrentHeight: m.CurrentHeight,
		TargetHeight:  m.TargetHeight,
		IsSyncing:     m.IsSyncing,
		LastBlockTime: time.UnixMilli(m.LastBlockTimeMs),
		UpdatedAt:     m.UpdatedAt,
	}
}

func marshalStringMap(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return raw, nil
}

func unmarshalStringMap(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}
