package entity

type TokenBalance struct {
	TokenID string
	Address string
	Balance int64
}
