package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
	"github.com/shark-explorer/shark-indexer/pkg/ergotree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBlockHeaderRoundTrip(t *testing.T) {
	header := entity.Block{
		ID:         "0a1b000000000000000000000000000000000000000000000000000000000001",
		Height:     1042,
		ParentID:   "0a1b000000000000000000000000000000000000000000000000000000000000",
		Version:    2,
		Timestamp:  time.UnixMilli(1561978977137),
		Difficulty: 1199990374400,
		MainChain:  true,
		PowSolutions: types.PowSolutions{
			PK: "02bb8eb301ab3d5d14515e33760d0dfb4f7191312a640db64a3a1aeeac9703f2d3",
			W:  "026d7b267c33120d15c267664081a6b77a6dcae6b35147db2c3e1195573119cb14",
			N:  "0008a1d103880117",
			D:  json.RawMessage(`"1"`),
		},
		Votes: "000000",
	}

	params, err := mapBlockTypeToParams(header)
	require.NoError(t, err)
	assert.Equal(t, header.Timestamp.UnixMilli(), params.TimestampMs)

	restored, err := mapBlockHeaderModelToType(blockHeaderModel{
		ID:           params.ID,
		ParentID:     params.ParentID,
		Height:       params.Height,
		Version:      params.Version,
		TimestampMs:  params.TimestampMs,
		Difficulty:   params.Difficulty,
		Votes:        params.Votes,
		PowSolutions: params.PowSolutions,
	})
	require.NoError(t, err)
	assert.Equal(t, header.ID, restored.ID)
	assert.Equal(t, header.ParentID, restored.ParentID)
	assert.Equal(t, header.Height, restored.Height)
	assert.True(t, header.Timestamp.Equal(restored.Timestamp))
	assert.Equal(t, header.PowSolutions, restored.PowSolutions)
}

func TestMapBlockHeaderModelToType(t *testing.T) {
	t.Run("empty pow solutions", func(t *testing.T) {
		header, err := mapBlockHeaderModelToType(blockHeaderModel{ID: "00", Height: 7})
		require.NoError(t, err)
		assert.Equal(t, types.PowSolutions{}, header.PowSolutions)
	})
	t.Run("malformed pow solutions", func(t *testing.T) {
		_, err := mapBlockHeaderModelToType(blockHeaderModel{ID: "00", PowSolutions: []byte(`{`)})
		assert.Error(t, err)
	})
}

func TestMapOutputRoundTrip(t *testing.T) {
	output := entity.Output{
		BoxID:          "b69575e11c5c43400bfead5976ee0d6245a1168396b2e2a4f384691f275d501c",
		TxID:           "9148408c04c2e38a6402a7950d6157730fa7d49e9ab3b9cadec481d7769918e9",
		HeaderID:       "0a1b000000000000000000000000000000000000000000000000000000000001",
		Value:          67500000000,
		CreationHeight: 1041,
		Index:          0,
		ErgoTree:       "0008cd0354efc32652cad6cf1231be987afa29a686af30b5735995e3ce51339c4d0ca380",
		Address:        "9gQqZyxyjAptMbfW1Gydm3qaap11zd6X9DrABwgEE9eRdRvd27p",
		AddressType:    ergotree.AddressP2PK,
		Registers:      map[string]string{"R4": "0e03555344"},
	}

	params, err := mapOutputTypeToParams(output)
	require.NoError(t, err)

	restored, err := mapOutputModelToType(outputModel{
		BoxID:          params.BoxID,
		TxID:           params.TxID,
		HeaderID:       params.HeaderID,
		Value:          params.Value,
		CreationHeight: params.CreationHeight,
		Index:          params.Index,
		ErgoTree:       params.ErgoTree,
		Address:        params.Address,
		AddressType:    params.AddressType,
		Registers:      params.Registers,
	})
	require.NoError(t, err)
	assert.Equal(t, &output, restored)
	assert.Nil(t, restored.SpentByTxID)
}

func TestMapOutputModelToType_SpentLink(t *testing.T) {
	restored, err := mapOutputModelToType(outputModel{
		BoxID:       "b69575e11c5c43400bfead5976ee0d6245a1168396b2e2a4f384691f275d501c",
		Registers:   []byte(`{}`),
		SpentByTxID: lo.ToPtr("9148408c04c2e38a6402a7950d6157730fa7d49e9ab3b9cadec481d7769918e9"),
	})
	require.NoError(t, err)
	require.NotNil(t, restored.SpentByTxID)
	assert.Equal(t, "9148408c04c2e38a6402a7950d6157730fa7d49e9ab3b9cadec481d7769918e9", *restored.SpentByTxID)
}

func TestMarshalStringMap(t *testing.T) {
	t.Run("nil map stores empty object", func(t *testing.T) {
		raw, err := marshalStringMap(nil)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{}`), raw)
	})
	t.Run("round trip", func(t *testing.T) {
		in := map[string]string{"R4": "0e03555344", "R6": "0400"}
		raw, err := marshalStringMap(in)
		require.NoError(t, err)
		out, err := unmarshalStringMap(raw)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
	t.Run("empty column yields empty map", func(t *testing.T) {
		out, err := unmarshalStringMap(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
