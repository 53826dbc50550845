package ergotree

import (
	"testing"

	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCollBytes(t *testing.T) {
	t.Run("token name", func(t *testing.T) {
		payload, err := DecodeCollBytes("0e03534947")
		require.NoError(t, err)
		assert.Equal(t, []byte("SIG"), payload)
	})

	t.Run("empty collection", func(t *testing.T) {
		payload, err := DecodeCollBytes("0e00")
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := DecodeCollBytes("0e05abcd")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := DecodeCollBytes("0404")
		assert.ErrorIs(t, err, errs.Unsupported)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := DecodeCollBytes("0exx")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}

func TestDecodeUTF8String(t *testing.T) {
	name, err := DecodeUTF8String("0e03534947")
	require.NoError(t, err)
	assert.Equal(t, "SIG", name)

	// 0xff is not valid utf-8
	_, err = DecodeUTF8String("0e01ff")
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestDecodeInt(t *testing.T) {
	t.Run("int one", func(t *testing.T) {
		n, err := DecodeInt("0402")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("int minus one", func(t *testing.T) {
		n, err := DecodeInt("0401")
		require.NoError(t, err)
		assert.Equal(t, int64(-1), n)
	})

	t.Run("long million", func(t *testing.T) {
		// zigzag(1_000_000) = 2_000_000 = VLQ 80 89 7a
		n, err := DecodeInt("0580897a")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), n)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodeInt("040200")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := DecodeInt("0e0132")
		assert.ErrorIs(t, err, errs.Unsupported)
	})
}

func TestDecodeDecimals(t *testing.T) {
	t.Run("integer form", func(t *testing.T) {
		n, err := DecodeDecimals("0404")
		require.NoError(t, err)
		assert.Equal(t, int32(2), n)
	})

	t.Run("ascii form", func(t *testing.T) {
		// Coll[Byte]("2"), the encoding most deployed mints use
		n, err := DecodeDecimals("0e0132")
		require.NoError(t, err)
		assert.Equal(t, int32(2), n)
	})

	t.Run("zero decimals", func(t *testing.T) {
		n, err := DecodeDecimals("0400")
		require.NoError(t, err)
		assert.Equal(t, int32(0), n)
	})

	t.Run("negative rejected", func(t *testing.T) {
		_, err := DecodeDecimals("0401")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("non numeric ascii", func(t *testing.T) {
		_, err := DecodeDecimals("0e03534947")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}
