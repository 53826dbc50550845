// Package ergotree decodes the serialized guarding scripts carried by
// transaction outputs: address derivation, and the typed register constants
// token mints use for metadata.
package ergotree

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"golang.org/x/crypto/blake2b"
)

// AddressType discriminates how an address commits to its guarding script.
type AddressType byte

const (
	// AddressP2PK pays to a serialized compressed public key embedded in the
	// tree; the address commits to the key alone.
	AddressP2PK AddressType = 0x01

	// AddressP2S pays to an arbitrary script; the address commits to the
	// full serialized tree.
	AddressP2S AddressType = 0x03
)

func (t AddressType) String() string {
	switch t {
	case AddressP2PK:
		return "p2pk"
	case AddressP2S:
		return "p2s"
	default:
		return "unknown"
	}
}

const (
	checksumLength = 4

	// A P2PK tree is exactly header || SigmaProp(ProveDlog) || 33-byte point.
	p2pkTreeLength   = 36
	p2pkContentStart = 3
)

var p2pkTreePrefix = []byte{0x00, 0x08, 0xcd}

// DeriveAddress computes the base58 address of an output's guarding tree on
// the given network. The head byte combines the network prefix with the
// address type; the trailing 4 bytes are a blake2b-256 checksum over
// head||content.
func DeriveAddress(treeHex string, network common.Network) (string, AddressType, error) {
	tree, err := hex.DecodeString(treeHex)
	if err != nil {
		return "", 0, errors.Wrap(errs.InvalidArgument, "ergo tree is not hex")
	}
	if len(tree) == 0 {
		return "", 0, errors.Wrap(errs.InvalidArgument, "empty ergo tree")
	}

	content, addrType := tree, AddressP2S
	if isP2PKTree(tree) {
		content, addrType = tree[p2pkContentStart:], AddressP2PK
	}

	body := make([]byte, 0, 1+len(content)+checksumLength)
	body = append(body, network.AddressPrefix()+byte(addrType))
	body = append(body, content...)
	checksum := blake2b.Sum256(body)
	body = append(body, checksum[:checksumLength]...)

	return base58.Encode(body), addrType, nil
}

func isP2PKTree(tree []byte) bool {
	return len(tree) == p2pkTreeLength && bytes.Equal(tree[:p2pkContentStart], p2pkTreePrefix)
}

// ParseAddress decodes an address back into its type and content, verifying
// the checksum and the network prefix.
func ParseAddress(address string, network common.Network) (AddressType, []byte, error) {
	raw := base58.Decode(address)
	if len(raw) <= 1+checksumLength {
		return 0, nil, errors.Wrapf(errs.InvalidArgument, "address %q is too short", address)
	}

	body, checksum := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	digest := blake2b.Sum256(body)
	if !bytes.Equal(digest[:checksumLength], checksum) {
		return 0, nil, errors.Wrapf(errs.InvalidArgument, "address %q checksum mismatch", address)
	}

	head := body[0]
	if head&0xf0 != network.AddressPrefix() {
		return 0, nil, errors.Wrapf(errs.InvalidArgument, "address %q does not belong to %s", address, network)
	}

	return AddressType(head & 0x0f), body[1:], nil
}
