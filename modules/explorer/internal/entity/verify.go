package entity

// TokenSupplyMismatch is a verify finding: the aggregated holder balance of a
// token disagrees with its live supply (minted supply for tokens, sum of
// unspent output values for the native coin).
type TokenSupplyMismatch struct {
	TokenID    string
	Supply     int64
	Aggregated int64
}

// SpentLinkViolation is a verify finding: an output marked spent without a
// matching input row, or spent by a different transaction than the input
// that consumed it.
type SpentLinkViolation struct {
	BoxID       string
	SpentByTxID *string
	InputTxID   *string
}
