// Package vlq implements the variable-length quantity encoding used by the
// node's value serialization: unsigned 7-bit groups, little-endian first,
// with the high bit as a continuation flag. Signed values are zigzag-mapped
// before encoding.
package vlq

import "github.com/shark-explorer/shark-indexer/common/errs"

const (
	ErrEmpty        = errs.ErrorKind("vlq: empty byte sequence")
	ErrUnterminated = errs.ErrorKind("vlq: unterminated byte sequence")
)

func EncodeUint64(input uint64) []byte {
	bytes := make([]byte, 0)
	// for n >> 7 > 0
	for input>>7 > 0 {
		last7Bits := byte(input & 0b0111_1111)
		bytes = append(bytes, last7Bits|0b1000_0000)
		input >>= 7
	}
	bytes = append(bytes, byte(input))
	return bytes
}

func DecodeUint64(data []byte) (n uint64, length int, err error) {
	if len(data) == 0 {
		return 0, 0, ErrEmpty
	}

	for i, b := range data {
		if i > 9 {
			return 0, 0, errs.OverflowUint64
		}
		value := uint64(b & 0b0111_1111)
		// the 10th byte can carry at most one significant bit
		if i == 9 && value > 1 {
			return 0, 0, errs.OverflowUint64
		}
		n |= value << (7 * i)
		// if the high bit is not set, then this is the last byte
		if b&0b1000_0000 == 0 {
			return n, i + 1, nil
		}
	}
	return 0, 0, ErrUnterminated
}

func EncodeInt64(input int64) []byte {
	return EncodeUint64(zigzag(input))
}

func DecodeInt64(data []byte) (n int64, length int, err error) {
	u, length, err := DecodeUint64(data)
	if err != nil {
		return 0, 0, err
	}
	return unzigzag(u), length, nil
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
