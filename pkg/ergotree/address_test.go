package ergotree

import (
	"encoding/hex"
	"testing"

	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compressed secp256k1 generator point, a well-formed 33-byte public key
const testPubKey = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestDeriveAddressP2PK(t *testing.T) {
	tree := "0008cd" + testPubKey

	address, addrType, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, AddressP2PK, addrType)
	assert.NotEmpty(t, address)

	parsedType, content, err := ParseAddress(address, common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, AddressP2PK, parsedType)
	assert.Equal(t, testPubKey, hex.EncodeToString(content))
}

func TestDeriveAddressP2S(t *testing.T) {
	// anything that is not a plain pay-to-pubkey tree commits to the whole script
	tree := "100204a00b08cd" + testPubKey + "ea02d192a39a8cc7a701730073011001020402d19683030193a38cc7b2a57300000193c2b2a57301007473027303830108cdeeac93b1a57304"

	address, addrType, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, AddressP2S, addrType)

	parsedType, content, err := ParseAddress(address, common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, AddressP2S, parsedType)
	assert.Equal(t, tree, hex.EncodeToString(content))
}

func TestDeriveAddressDeterministic(t *testing.T) {
	tree := "0008cd" + testPubKey

	first, _, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)
	second, _, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeriveAddressNetworkPrefix(t *testing.T) {
	tree := "0008cd" + testPubKey

	mainnet, _, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)
	testnet, _, err := DeriveAddress(tree, common.NetworkTestnet)
	require.NoError(t, err)
	assert.NotEqual(t, mainnet, testnet)

	// a mainnet address must not parse as testnet
	_, _, err = ParseAddress(mainnet, common.NetworkTestnet)
	assert.ErrorIs(t, err, errs.InvalidArgument)
	_, _, err = ParseAddress(testnet, common.NetworkTestnet)
	assert.NoError(t, err)
}

func TestDeriveAddressErrors(t *testing.T) {
	t.Run("not hex", func(t *testing.T) {
		_, _, err := DeriveAddress("zz08cd", common.NetworkMainnet)
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("empty tree", func(t *testing.T) {
		_, _, err := DeriveAddress("", common.NetworkMainnet)
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}

func TestParseAddressChecksum(t *testing.T) {
	tree := "0008cd" + testPubKey
	address, _, err := DeriveAddress(tree, common.NetworkMainnet)
	require.NoError(t, err)

	// flip the last character to break the checksum
	last := address[len(address)-1]
	flipped := byte('1')
	if last == flipped {
		flipped = '2'
	}
	corrupted := address[:len(address)-1] + string(flipped)

	_, _, err = ParseAddress(corrupted, common.NetworkMainnet)
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestParseAddressTooShort(t *testing.T) {
	_, _, err := ParseAddress("1", common.NetworkMainnet)
	assert.ErrorIs(t, err, errs.InvalidArgument)
}
