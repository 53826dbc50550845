package common

// Identifiers on the wire are 32-byte blake2b digests rendered as 64-char
// lowercase hex. The all-zero id doubles as the genesis parent id and as the
// box id carried by coinbase/emission inputs; it never resolves to a stored
// row.
const (
	IDHexLength = 64

	ZeroID = "0000000000000000000000000000000000000000000000000000000000000000"

	// ErgTokenID is the synthetic token id under which native value balances
	// are aggregated alongside minted tokens.
	ErgTokenID = ZeroID
)

func IsZeroID(id string) bool {
	return id == ZeroID
}

// IsHexID reports whether id looks like a 32-byte hex digest.
func IsHexID(id string) bool {
	if len(id) != IDHexLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
