package entity

import "time"

type Transaction struct {
	ID        string
	BlockID   string
	Index     int32
	Timestamp time.Time
	Size      int64
	Fee       int64
	Coinbase  bool
	MainChain bool
}
