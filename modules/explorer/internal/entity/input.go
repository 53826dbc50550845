package entity

type Input struct {
	BoxID      string
	TxID       string
	HeaderID   string
	Index      int32
	ProofBytes string
	Extension  map[string]string
}
