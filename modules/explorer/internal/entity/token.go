package entity

type Token struct {
	TokenID         string
	MintingTxID     string
	MintingBoxID    string
	FirstSeenHeight int64
	Name            string
	Description     string
	Decimals        int32
	Supply          int64
}
