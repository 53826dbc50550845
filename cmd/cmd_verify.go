package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/internal/config"
	"github.com/shark-explorer/shark-indexer/internal/postgres"
	"github.com/shark-explorer/shark-indexer/modules/explorer"
	explorerpostgres "github.com/shark-explorer/shark-indexer/modules/explorer/repository/postgres"
	"github.com/shark-explorer/shark-indexer/pkg/decimals"
	"github.com/spf13/cobra"
)

func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check indexed data consistency (token supplies, holder balances, spend links)",
		RunE:  verifyHandler,
	}
}

func verifyHandler(cmd *cobra.Command, _ []string) error {
	conf := config.Load()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewPool(ctx, conf.Explorer.Postgres)
	if err != nil {
		return errors.Wrap(err, "can't create Postgres connection pool")
	}
	defer pg.Close()

	report, err := explorer.Verify(ctx, explorerpostgres.NewRepository(pg))
	if err != nil {
		return errors.WithStack(err)
	}

	for _, m := range report.SupplyMismatches {
		fmt.Printf("supply mismatch: token %s live %s aggregated %s\n",
			m.TokenID, formatTokenAmount(m.TokenID, m.Supply), formatTokenAmount(m.TokenID, m.Aggregated))
	}
	for _, b := range report.NegativeBalances {
		fmt.Printf("negative balance: token %s address %s balance %s\n",
			b.TokenID, b.Address, formatTokenAmount(b.TokenID, b.Balance))
	}
	for _, v := range report.SpentLinkViolations {
		fmt.Printf("spend link violation: box %s spent_by %s input_tx %s\n",
			v.BoxID, lo.FromPtrOr(v.SpentByTxID, "none"), lo.FromPtrOr(v.InputTxID, "none"))
	}

	if total := report.Total(); total > 0 {
		return errors.Errorf("found %d consistency violations", total)
	}
	fmt.Println("all checks passed")
	return nil
}

// formatTokenAmount renders native coin amounts in ERG, token amounts raw
// (token decimals are display metadata, supplies are stored in base units).
func formatTokenAmount(tokenID string, amount int64) string {
	if tokenID == common.ErgTokenID {
		return decimals.FromNanoErg(amount).String() + " ERG"
	}
	return strconv.FormatInt(amount, 10)
}
