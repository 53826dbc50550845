package entity

type AddressStats struct {
	Address           string
	FirstActiveHeight int64
	LastActiveHeight  int64
	TxCount           int64
}
