package types

import (
	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/pkg/ergoclient"
	"github.com/shark-explorer/shark-indexer/pkg/ergotree"
)

type Transaction struct {
	ID          string
	BlockID     string
	BlockHeight int64
	Index       int32
	Size        int64
	Inputs      []*TxInput
	Outputs     []*TxOutput
}

type TxInput struct {
	BoxID      string
	TxID       string
	Index      int32
	ProofBytes string
	Extension  map[string]string
}

type TxOutput struct {
	BoxID          string
	TxID           string
	Index          int32
	Value          int64
	CreationHeight int64
	ErgoTree       string
	Address        string
	AddressType    ergotree.AddressType
	Registers      map[string]string
	Assets         []*Asset
}

type Asset struct {
	TokenID string
	Index   int32
	Amount  int64
}

// ParseTransaction converts a node transaction to the indexed representation,
// assigning positional indexes and deriving addresses from serialized trees.
func ParseTransaction(src ergoclient.Transaction, blockHeight int64, blockID string, index int32, network common.Network) (*Transaction, error) {
	if !common.IsHexID(src.ID) {
		return nil, errors.Wrapf(errs.BadBlock, "malformed transaction id %q in block %s", src.ID, blockID)
	}
	if len(src.Outputs) == 0 {
		return nil, errors.Wrapf(errs.BadBlock, "transaction %s has no outputs", src.ID)
	}

	inputs := make([]*TxInput, 0, len(src.Inputs))
	for i, rawInput := range src.Inputs {
		if !common.IsHexID(rawInput.BoxID) {
			return nil, errors.Wrapf(errs.BadBlock, "malformed input box id %q in transaction %s", rawInput.BoxID, src.ID)
		}
		input := &TxInput{
			BoxID: rawInput.BoxID,
			TxID:  src.ID,
			Index: int32(i),
		}
		if proof := rawInput.SpendingProof; proof != nil {
			input.ProofBytes = proof.ProofBytes
			input.Extension = proof.Extension
		}
		inputs = append(inputs, input)
	}

	outputs := make([]*TxOutput, 0, len(src.Outputs))
	for i, rawOutput := range src.Outputs {
		output, err := parseOutput(rawOutput, src.ID, int32(i), network)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		outputs = append(outputs, output)
	}

	return &Transaction{
		ID:          src.ID,
		BlockID:     blockID,
		BlockHeight: blockHeight,
		Index:       index,
		Size:        src.Size,
		Inputs:      inputs,
		Outputs:     outputs,
	}, nil
}

func parseOutput(src ergoclient.TxOutput, txID string, index int32, network common.Network) (*TxOutput, error) {
	if !common.IsHexID(src.BoxID) {
		return nil, errors.Wrapf(errs.BadBlock, "malformed output box id %q in transaction %s", src.BoxID, txID)
	}
	if src.Value < 0 {
		return nil, errors.Wrapf(errs.BadBlock, "negative value %d of box %s", src.Value, src.BoxID)
	}
	if src.TransactionID != "" && src.TransactionID != txID {
		return nil, errors.Wrapf(errs.BadBlock, "box %s claims transaction %s but is enclosed by %s", src.BoxID, src.TransactionID, txID)
	}

	address, addressType, err := ergotree.DeriveAddress(src.ErgoTree, network)
	if err != nil {
		return nil, errors.Wrapf(errs.BadBlock, "can't derive address of box %s: %v", src.BoxID, err)
	}

	assets := make([]*Asset, 0, len(src.Assets))
	for i, rawAsset := range src.Assets {
		if !common.IsHexID(rawAsset.TokenID) {
			return nil, errors.Wrapf(errs.BadBlock, "malformed token id %q in box %s", rawAsset.TokenID, src.BoxID)
		}
		if rawAsset.Amount < 0 {
			return nil, errors.Wrapf(errs.BadBlock, "negative amount %d of token %s in box %s", rawAsset.Amount, rawAsset.TokenID, src.BoxID)
		}
		assets = append(assets, &Asset{
			TokenID: rawAsset.TokenID,
			Index:   int32(i),
			Amount:  rawAsset.Amount,
		})
	}

	return &TxOutput{
		BoxID:          src.BoxID,
		TxID:           txID,
		Index:          index,
		Value:          src.Value,
		CreationHeight: src.CreationHeight,
		ErgoTree:       src.ErgoTree,
		Address:        address,
		AddressType:    addressType,
		Registers:      src.AdditionalRegisters,
		Assets:         assets,
	}, nil
}
