package explorer

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/core/types"
	"github.com/shark-explorer/shark-indexer/internal/metrics"
	"github.com/shark-explorer/shark-indexer/modules/explorer/datagateway"
	"github.com/shark-explorer/shark-indexer/modules/explorer/internal/entity"
	"github.com/shark-explorer/shark-indexer/pkg/ergotree"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

// retryBackoffStep is the linear backoff unit between block commit attempts.
const retryBackoffStep = 500 * time.Millisecond

func (p *Processor) Process(ctx context.Context, blocks []*types.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	targetHeight := p.refreshTargetHeight(ctx, blocks[len(blocks)-1].Header.Height)

	for _, block := range blocks {
		if err := p.processBlock(ctx, block, targetHeight); err != nil {
			return errors.Wrapf(err, "failed to process block %d", block.Header.Height)
		}
	}
	return nil
}

// refreshTargetHeight asks the node for the chain tip once per Process call.
// When the node is unreachable the last block of the batch serves as the
// floor so sync status never regresses.
func (p *Processor) refreshTargetHeight(ctx context.Context, floor int64) int64 {
	info, err := p.ergoClient.Info(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to refresh target height from node", slogx.Error(err))
		metrics.TargetHeight.Set(float64(floor))
		return floor
	}
	target := info.FullHeight
	if target < floor {
		target = floor
	}
	metrics.TargetHeight.Set(float64(target))
	return target
}

// processBlock retries transient commit failures with linear backoff. A block
// the node handed us that cannot ever be applied is quarantined instead of
// blocking the pipeline forever.
func (p *Processor) processBlock(ctx context.Context, block *types.Block, targetHeight int64) error {
	for attempt := 0; ; attempt++ {
		startAt := time.Now()
		err := p.applyBlock(ctx, block, targetHeight)
		if err == nil {
			metrics.BlockCommitDuration.Observe(time.Since(startAt).Seconds())
			return nil
		}
		if errors.Is(err, errs.BadBlock) {
			p.poisonBlock(ctx, block, err)
			return errors.WithStack(err)
		}
		if ctx.Err() != nil {
			return errors.WithStack(err)
		}
		if attempt >= p.maxBlockRetries {
			p.poisonBlock(ctx, block, err)
			return errors.Wrapf(err, "giving up on block %s after %d attempts", block.Header.ID, attempt+1)
		}

		backoff := time.Duration(attempt+1) * retryBackoffStep
		logger.WarnContext(ctx, "Retrying block commit",
			slogx.Int64("height", block.Header.Height),
			slogx.Int("attempt", attempt+1),
			slogx.Duration("backoff", backoff),
			slogx.Error(err),
		)
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// poisonBlock records a block that could not be committed so operators can
// inspect it. The record is written in its own transaction; a failure to
// write it must not mask the original error, so it is only logged.
func (p *Processor) poisonBlock(ctx context.Context, block *types.Block, cause error) {
	poison := entity.PoisonBlock{
		BlockID: block.Header.ID,
		Height:  block.Header.Height,
		Reason:  cause.Error(),
	}
	if err := p.insertPoisonBlock(ctx, poison); err != nil {
		logger.ErrorContext(ctx, "Failed to record poison block",
			slogx.Int64("height", poison.Height),
			slogx.Error(err),
		)
		return
	}
	metrics.PoisonBlocks.Inc()
	logger.ErrorContext(ctx, "Block quarantined",
		slogx.String("event", "block_poisoned"),
		slogx.String("block_id", poison.BlockID),
		slogx.Int64("height", poison.Height),
		slogx.Error(cause),
	)
}

func (p *Processor) insertPoisonBlock(ctx context.Context, poison entity.PoisonBlock) error {
	if err := p.explorerDg.BeginTx(ctx); err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := p.explorerDg.RollbackTx(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to rollback transaction", slogx.Error(err))
		}
	}()
	if err := p.explorerDg.InsertPoisonBlock(ctx, poison); err != nil {
		return errors.Wrap(err, "failed to insert poison block")
	}
	if err := p.explorerDg.CommitTx(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// applyBlock projects one block into storage inside a single transaction:
// either every row of the block lands or none of them do.
func (p *Processor) applyBlock(ctx context.Context, block *types.Block, targetHeight int64) error {
	if err := p.explorerDg.BeginTx(ctx); err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := p.explorerDg.RollbackTx(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to rollback transaction", slogx.Error(err))
		}
	}()

	// Re-processing a block whose deltas are already journaled must not fold
	// them in twice. Plain row inserts are conflict tolerant on their own.
	deltasApplied, err := p.explorerDg.HasBalanceChanges(ctx, block.Header.ID)
	if err != nil {
		return errors.Wrap(err, "failed to check journaled balance changes")
	}

	spentByBoxID, err := p.resolveSpentOutputs(ctx, block)
	if err != nil {
		return errors.WithStack(err)
	}
	fees := computeFees(block, spentByBoxID)

	if err := p.explorerDg.InsertBlock(ctx, buildBlockEntity(block)); err != nil {
		return errors.Wrap(err, "failed to insert block")
	}
	if err := p.explorerDg.InsertTransactions(ctx, buildTransactionEntities(block, fees)); err != nil {
		return errors.Wrap(err, "failed to insert transactions")
	}
	outputs, assets := buildOutputEntities(block)
	if err := p.explorerDg.InsertOutputs(ctx, outputs); err != nil {
		return errors.Wrap(err, "failed to insert outputs")
	}
	if err := p.explorerDg.InsertAssets(ctx, assets); err != nil {
		return errors.Wrap(err, "failed to insert assets")
	}
	if err := p.explorerDg.InsertInputs(ctx, buildInputEntities(block)); err != nil {
		return errors.Wrap(err, "failed to insert inputs")
	}
	if err := p.explorerDg.MarkOutputsSpent(ctx, buildSpendParams(block)); err != nil {
		return errors.Wrap(err, "failed to mark outputs spent")
	}
	if reward := buildMiningReward(block, fees); reward != nil {
		if err := p.explorerDg.InsertMiningReward(ctx, reward); err != nil {
			return errors.Wrap(err, "failed to insert mining reward")
		}
	}
	for _, token := range detectMintedTokens(block) {
		if err := p.explorerDg.UpsertToken(ctx, token); err != nil {
			return errors.Wrapf(err, "failed to upsert token %s", token.TokenID)
		}
	}
	if !deltasApplied {
		deltas := computeBalanceDeltas(block, spentByBoxID)
		if err := p.explorerDg.ApplyBalanceChanges(ctx, block.Header.ID, deltas); err != nil {
			return errors.Wrap(err, "failed to apply balance changes")
		}
		if err := p.explorerDg.UpdateAddressStats(ctx, buildAddressStats(block, spentByBoxID)); err != nil {
			return errors.Wrap(err, "failed to update address stats")
		}
	}
	if err := p.explorerDg.UpdateSyncStatus(ctx, entity.SyncStatus{
		CurrentHeight: block.Header.Height,
		TargetHeight:  targetHeight,
		IsSyncing:     block.Header.Height < targetHeight,
		LastBlockTime: block.Header.Timestamp,
	}); err != nil {
		return errors.Wrap(err, "failed to update sync status")
	}

	if err := p.explorerDg.CommitTx(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// resolveSpentOutputs maps every non-sentinel input of the block to the
// output it spends. Outputs created in the same block are served from memory
// so intra-block references resolve regardless of transaction order; the
// rest come from storage. An input pointing at a box the indexer has never
// seen cannot be applied at any later attempt either.
func (p *Processor) resolveSpentOutputs(ctx context.Context, block *types.Block) (map[string]*entity.Output, error) {
	inBlock := make(map[string]*entity.Output)
	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			inBlock[output.BoxID] = buildOutputEntity(block.Header.ID, output)
		}
	}

	resolved := make(map[string]*entity.Output)
	var missing []string
	for _, tx := range block.Transactions {
		for _, input := range tx.Inputs {
			if common.IsZeroID(input.BoxID) {
				continue
			}
			if output, ok := inBlock[input.BoxID]; ok {
				resolved[input.BoxID] = output
				continue
			}
			missing = append(missing, input.BoxID)
		}
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	stored, err := p.explorerDg.GetOutputsByBoxIDs(ctx, lo.Uniq(missing))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get outputs by box ids")
	}
	for _, boxID := range missing {
		output, ok := stored[boxID]
		if !ok {
			return nil, errors.Wrapf(errs.BadBlock, "block %s spends unknown box %s", block.Header.ID, boxID)
		}
		resolved[boxID] = output
	}
	return resolved, nil
}

// computeFees derives per-transaction fees from resolved input values. The
// first transaction of a block is the emission payout and pays no fee.
func computeFees(block *types.Block, spentByBoxID map[string]*entity.Output) []int64 {
	fees := make([]int64, len(block.Transactions))
	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}
		var inputValue, outputValue int64
		for _, input := range tx.Inputs {
			if spent, ok := spentByBoxID[input.BoxID]; ok {
				inputValue += spent.Value
			}
		}
		for _, output := range tx.Outputs {
			outputValue += output.Value
		}
		if fee := inputValue - outputValue; fee > 0 {
			fees[i] = fee
		}
	}
	return fees
}

func buildBlockEntity(block *types.Block) *entity.Block {
	var blockCoins int64
	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			blockCoins += output.Value
		}
	}
	return &entity.Block{
		ID:           block.Header.ID,
		Height:       block.Header.Height,
		ParentID:     block.Header.ParentID,
		Version:      block.Header.Version,
		Timestamp:    block.Header.Timestamp,
		Difficulty:   block.Header.Difficulty,
		BlockSize:    block.Size,
		BlockCoins:   blockCoins,
		TxsCount:     int32(len(block.Transactions)),
		TxsSize:      block.TxsSize,
		MinerAddress: minerAddress(block),
		MainChain:    true,
		PowSolutions: block.Header.PowSolutions,
		Votes:        block.Header.Votes,
	}
}

// minerAddress is the address of the first output of the first transaction,
// where the emission contract pays the block miner.
func minerAddress(block *types.Block) string {
	if len(block.Transactions) == 0 || len(block.Transactions[0].Outputs) == 0 {
		return ""
	}
	return block.Transactions[0].Outputs[0].Address
}

func buildTransactionEntities(block *types.Block, fees []int64) []*entity.Transaction {
	txs := make([]*entity.Transaction, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		txs = append(txs, &entity.Transaction{
			ID:        tx.ID,
			BlockID:   block.Header.ID,
			Index:     tx.Index,
			Timestamp: block.Header.Timestamp,
			Size:      tx.Size,
			Fee:       fees[i],
			Coinbase:  i == 0,
			MainChain: true,
		})
	}
	return txs
}

func buildOutputEntities(block *types.Block) ([]*entity.Output, []*entity.Asset) {
	var outputs []*entity.Output
	var assets []*entity.Asset
	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			e := buildOutputEntity(block.Header.ID, output)
			outputs = append(outputs, e)
			assets = append(assets, e.Assets...)
		}
	}
	return outputs, assets
}

func buildOutputEntity(headerID string, output *types.TxOutput) *entity.Output {
	assets := make([]*entity.Asset, 0, len(output.Assets))
	for _, asset := range output.Assets {
		assets = append(assets, &entity.Asset{
			BoxID:    output.BoxID,
			TokenID:  asset.TokenID,
			HeaderID: headerID,
			Index:    asset.Index,
			Amount:   asset.Amount,
		})
	}
	return &entity.Output{
		BoxID:          output.BoxID,
		TxID:           output.TxID,
		HeaderID:       headerID,
		Value:          output.Value,
		CreationHeight: output.CreationHeight,
		Index:          output.Index,
		ErgoTree:       output.ErgoTree,
		Address:        output.Address,
		AddressType:    output.AddressType,
		Registers:      output.Registers,
		Assets:         assets,
	}
}

func buildInputEntities(block *types.Block) []*entity.Input {
	var inputs []*entity.Input
	for _, tx := range block.Transactions {
		for _, input := range tx.Inputs {
			inputs = append(inputs, &entity.Input{
				BoxID:      input.BoxID,
				TxID:       input.TxID,
				HeaderID:   block.Header.ID,
				Index:      input.Index,
				ProofBytes: input.ProofBytes,
				Extension:  input.Extension,
			})
		}
	}
	return inputs
}

func buildSpendParams(block *types.Block) []datagateway.SpendOutputParams {
	var spends []datagateway.SpendOutputParams
	for _, tx := range block.Transactions {
		for _, input := range tx.Inputs {
			if common.IsZeroID(input.BoxID) {
				continue
			}
			spends = append(spends, datagateway.SpendOutputParams{
				BoxID: input.BoxID,
				TxID:  tx.ID,
			})
		}
	}
	return spends
}

// buildMiningReward captures the payout of the block: the first output of
// the emission transaction plus the fees collected from the remaining
// transactions.
func buildMiningReward(block *types.Block, fees []int64) *entity.MiningReward {
	if len(block.Transactions) == 0 {
		return nil
	}
	coinbase := block.Transactions[0]
	if len(coinbase.Outputs) == 0 {
		return nil
	}
	var totalFees int64
	for _, fee := range fees[1:] {
		totalFees += fee
	}
	return &entity.MiningReward{
		BlockID:      block.Header.ID,
		Height:       block.Header.Height,
		MinerAddress: coinbase.Outputs[0].Address,
		Reward:       coinbase.Outputs[0].Value,
		Fees:         totalFees,
	}
}

// detectMintedTokens finds tokens minted by this block. A transaction mints
// a token when one of its outputs carries an asset whose id equals the
// transaction's first input box id. Metadata follows EIP-4: R4 name, R5
// description, R6 decimals, read from the first carrying output.
func detectMintedTokens(block *types.Block) []*entity.Token {
	var tokens []*entity.Token
	for _, tx := range block.Transactions {
		if len(tx.Inputs) == 0 {
			continue
		}
		mintedID := tx.Inputs[0].BoxID
		if common.IsZeroID(mintedID) {
			continue
		}

		var token *entity.Token
		for _, output := range tx.Outputs {
			for _, asset := range output.Assets {
				if asset.TokenID != mintedID {
					continue
				}
				if token == nil {
					name, description, decimals := decodeTokenMetadata(output.Registers)
					token = &entity.Token{
						TokenID:         mintedID,
						MintingTxID:     tx.ID,
						MintingBoxID:    output.BoxID,
						FirstSeenHeight: block.Header.Height,
						Name:            name,
						Description:     description,
						Decimals:        decimals,
					}
				}
				token.Supply += asset.Amount
			}
		}
		if token != nil {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// decodeTokenMetadata extracts EIP-4 metadata registers. Minting boxes are
// free to put arbitrary bytes there, so anything undecodable is left empty.
func decodeTokenMetadata(registers map[string]string) (name, description string, decimals int32) {
	if raw, ok := registers["R4"]; ok {
		if v, err := ergotree.DecodeUTF8String(raw); err == nil {
			name = v
		}
	}
	if raw, ok := registers["R5"]; ok {
		if v, err := ergotree.DecodeUTF8String(raw); err == nil {
			description = v
		}
	}
	if raw, ok := registers["R6"]; ok {
		if v, err := ergotree.DecodeDecimals(raw); err == nil {
			decimals = v
		}
	}
	return
}

type balanceKey struct {
	tokenID string
	address string
}

// computeBalanceDeltas folds the block's box movements into one signed delta
// per (token, address). Native value aggregates under the zero token id next
// to minted tokens. Zero-sum entries drop out so the journal stays minimal.
// The result is sorted for a deterministic write order.
func computeBalanceDeltas(block *types.Block, spentByBoxID map[string]*entity.Output) []datagateway.BalanceDeltaParams {
	merged := make(map[balanceKey]int64)
	for _, tx := range block.Transactions {
		for _, input := range tx.Inputs {
			spent, ok := spentByBoxID[input.BoxID]
			if !ok {
				continue
			}
			merged[balanceKey{tokenID: common.ErgTokenID, address: spent.Address}] -= spent.Value
			for _, asset := range spent.Assets {
				merged[balanceKey{tokenID: asset.TokenID, address: spent.Address}] -= asset.Amount
			}
		}
		for _, output := range tx.Outputs {
			merged[balanceKey{tokenID: common.ErgTokenID, address: output.Address}] += output.Value
			for _, asset := range output.Assets {
				merged[balanceKey{tokenID: asset.TokenID, address: output.Address}] += asset.Amount
			}
		}
	}

	deltas := make([]datagateway.BalanceDeltaParams, 0, len(merged))
	for key, delta := range merged {
		if delta == 0 {
			continue
		}
		deltas = append(deltas, datagateway.BalanceDeltaParams{
			TokenID: key.tokenID,
			Address: key.address,
			Delta:   delta,
		})
	}
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].TokenID != deltas[j].TokenID {
			return deltas[i].TokenID < deltas[j].TokenID
		}
		return deltas[i].Address < deltas[j].Address
	})
	return deltas
}

// buildAddressStats counts, per address, the transactions of this block that
// created or spent one of its boxes.
func buildAddressStats(block *types.Block, spentByBoxID map[string]*entity.Output) []*entity.AddressStats {
	byAddress := make(map[string]*entity.AddressStats)
	for _, tx := range block.Transactions {
		touched := make(map[string]struct{})
		for _, input := range tx.Inputs {
			if spent, ok := spentByBoxID[input.BoxID]; ok {
				touched[spent.Address] = struct{}{}
			}
		}
		for _, output := range tx.Outputs {
			touched[output.Address] = struct{}{}
		}
		for address := range touched {
			stats, ok := byAddress[address]
			if !ok {
				stats = &entity.AddressStats{
					Address:           address,
					FirstActiveHeight: block.Header.Height,
					LastActiveHeight:  block.Header.Height,
				}
				byAddress[address] = stats
			}
			stats.TxCount++
		}
	}

	result := lo.Values(byAddress)
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}
