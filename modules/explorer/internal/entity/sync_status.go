package entity

import "time"

type SyncStatus struct {
	CurrentHeight int64
	TargetHeight  int64
	IsSyncing     bool
	LastBlockTime time.Time
	UpdatedAt     time.Time
}
