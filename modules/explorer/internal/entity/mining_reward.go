package entity

type MiningReward struct {
	BlockID      string
	Height       int64
	MinerAddress string
	Reward       int64
	Fees         int64
}
