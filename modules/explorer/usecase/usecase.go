package usecase

import (
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
)

type Usecase struct {
	explorerDg datagateway.ExplorerDataGateway
}

func New(explorerDg datagateway.ExplorerDataGateway) *Usecase {
	return &Usecase{
		explorerDg: explorerDg,
	}
}
