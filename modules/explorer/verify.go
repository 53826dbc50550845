package explorer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
	"golang.org/x/sync/errgroup"
)

// VerifyReport holds consistency findings over indexed data. An empty report
// means supplies, balances and spend links all agree.
type VerifyReport struct {
	SupplyMismatches    []entity.TokenSupplyMismatch
	NegativeBalances    []entity.TokenBalance
	SpentLinkViolations []entity.SpentLinkViolation
}

func (r VerifyReport) Total() int {
	return len(r.SupplyMismatches) + len(r.NegativeBalances) + len(r.SpentLinkViolations)
}

// Verify runs the consistency checks concurrently and collects the findings.
func Verify(ctx context.Context, explorerDg datagateway.ExplorerDataGateway) (VerifyReport, error) {
	var report VerifyReport
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		report.SupplyMismatches, err = explorerDg.GetTokenSupplyMismatches(ctx)
		return errors.Wrap(err, "failed to check token supplies")
	})
	group.Go(func() (err error) {
		report.NegativeBalances, err = explorerDg.GetNegativeBalances(ctx)
		return errors.Wrap(err, "failed to check holder balances")
	})
	group.Go(func() (err error) {
		report.SpentLinkViolations, err = explorerDg.GetSpentLinkViolations(ctx)
		return errors.Wrap(err, "failed to check spend links")
	})
	if err := group.Wait(); err != nil {
		return VerifyReport{}, errors.WithStack(err)
	}
	return report, nil
}
