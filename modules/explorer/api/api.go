package api

import (
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/modules/explorer/api/httphandler"
	"github.com/shark-explorer/shark-indexer/modules/explorer/usecase"
)

func NewHTTPHandler(network common.Network, usecase *usecase.Usecase) *httphandler.HttpHandler {
	return httphandler.New(network, usecase)
}
