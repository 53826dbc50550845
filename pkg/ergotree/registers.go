package ergotree

import (
	"encoding/hex"
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/pkg/vlq"
)

// Type codes of the register constants understood here. Registers carrying
// any other type are kept opaque by the parser and ignored by metadata
// extraction.
const (
	typeInt      = 0x04
	typeLong     = 0x05
	typeCollByte = 0x0e
)

// MaxTokenDecimals bounds the decimal-places register of a token. Wider
// values cannot come from a well-formed Long constant.
const MaxTokenDecimals = 19

// DecodeCollBytes decodes a Coll[Byte] register constant: type code, VLQ
// byte length, payload.
func DecodeCollBytes(raw string) ([]byte, error) {
	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrap(errs.InvalidArgument, "register value is not hex")
	}
	if len(data) == 0 || data[0] != typeCollByte {
		return nil, errors.Wrap(errs.Unsupported, "register value is not a byte collection")
	}

	size, lengthRead, err := vlq.DecodeUint64(data[1:])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	payload := data[1+lengthRead:]
	if uint64(len(payload)) != size {
		return nil, errors.Wrapf(errs.InvalidArgument, "register payload length %d does not match declared %d", len(payload), size)
	}
	return payload, nil
}

// DecodeUTF8String decodes a Coll[Byte] register holding text.
func DecodeUTF8String(raw string) (string, error) {
	payload, err := DecodeCollBytes(raw)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", errors.Wrap(errs.InvalidArgument, "register payload is not valid utf-8")
	}
	return string(payload), nil
}

// DecodeInt decodes an Int or Long register constant (zigzag VLQ).
func DecodeInt(raw string) (int64, error) {
	data, err := hex.DecodeString(raw)
	if err != nil {
		return 0, errors.Wrap(errs.InvalidArgument, "register value is not hex")
	}
	if len(data) == 0 || (data[0] != typeInt && data[0] != typeLong) {
		return 0, errors.Wrap(errs.Unsupported, "register value is not an integer")
	}

	n, lengthRead, err := vlq.DecodeInt64(data[1:])
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if lengthRead != len(data)-1 {
		return 0, errors.Wrap(errs.InvalidArgument, "register value has trailing bytes")
	}
	return n, nil
}

// DecodeDecimals extracts a token's decimal-places register, which appears
// on-chain both as an integer constant and as a byte collection holding the
// ASCII digits.
func DecodeDecimals(raw string) (int32, error) {
	if n, err := DecodeInt(raw); err == nil {
		if n < 0 || n > MaxTokenDecimals {
			return 0, errors.Wrapf(errs.InvalidArgument, "decimals %d out of range", n)
		}
		return int32(n), nil
	}

	text, err := DecodeUTF8String(raw)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil || n < 0 || n > MaxTokenDecimals {
		return 0, errors.Wrapf(errs.InvalidArgument, "decimals %q out of range", text)
	}
	return int32(n), nil
}
