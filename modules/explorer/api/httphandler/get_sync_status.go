package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type getSyncStatusResult struct {
	Network       string    `json:"network"`
	CurrentHeight int64     `json:"currentHeight"`
	TargetHeight  int64     `json:"targetHeight"`
	IsSyncing     bool      `json:"isSyncing"`
	Progress      string    `json:"progress"`
	LastBlockTime time.Time `json:"lastBlockTime"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type getSyncStatusResponse = HttpResponse[getSyncStatusResult]

func (h *HttpHandler) GetSyncStatus(ctx *fiber.Ctx) (err error) {
	status, err := h.usecase.GetSyncStatus(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetSyncStatus")
	}

	resp := getSyncStatusResponse{
		Result: &getSyncStatusResult{
			Network:       h.network.String(),
			CurrentHeight: status.CurrentHeight,
			TargetHeight:  status.TargetHeight,
			IsSyncing:     status.IsSyncing,
			Progress:      syncProgress(status.CurrentHeight, status.TargetHeight),
			LastBlockTime: status.LastBlockTime,
			UpdatedAt:     status.UpdatedAt,
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

// syncProgress renders indexed height over target height as a percentage.
func syncProgress(current, target int64) string {
	if target <= 0 {
		return "0"
	}
	if current >= target {
		return "100"
	}
	return decimal.NewFromInt(current).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(target)).
		Round(2).String()
}
