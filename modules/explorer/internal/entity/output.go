package entity

import "github.com/shark-explorer/shark-indexer/pkg/ergotree"

type Output struct {
	BoxID          string
	TxID           string
	HeaderID       string
	Value          int64
	CreationHeight int64
	Index          int32
	ErgoTree       string
	Address        string
	AddressType    ergotree.AddressType
	Registers      map[string]string
	SpentByTxID    *string
	Assets         []*Asset
}

type Asset struct {
	BoxID    string
	TokenID  string
	HeaderID string
	Index    int32
	Amount   int64
}
