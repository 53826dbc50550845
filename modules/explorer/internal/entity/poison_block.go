package entity

type PoisonBlock struct {
	BlockID string
	Height  int64
	Reason  string
}
