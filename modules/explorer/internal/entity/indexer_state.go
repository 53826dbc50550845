package entity

type IndexerState struct {
	DBVersion int32
	Network   string
}
