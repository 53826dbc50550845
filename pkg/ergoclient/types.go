package ergoclient

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common/errs"
)

// NodeInfo is the response of GET /info.
type NodeInfo struct {
	Name             string     `json:"name"`
	AppVersion       string     `json:"appVersion"`
	FullHeight       int64      `json:"fullHeight"`
	HeadersHeight    int64      `json:"headersHeight"`
	MaxPeerHeight    int64      `json:"maxPeerHeight"`
	BestFullHeaderID string     `json:"bestFullHeaderId"`
	UnconfirmedCount int64      `json:"unconfirmedCount"`
	Difficulty       Difficulty `json:"difficulty"`
}

// Difficulty tolerates both encodings the node emits: a bare JSON number in
// block headers and a quoted decimal string in /info.
type Difficulty int64

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrapf(errs.InvalidArgument, "malformed difficulty %q", s)
	}
	*d = Difficulty(n)
	return nil
}

// BlockHeader is the response of GET /blocks/{id}/header and the `header`
// field of a full block.
type BlockHeader struct {
	ID               string       `json:"id"`
	ParentID         string       `json:"parentId"`
	Version          int32        `json:"version"`
	Height           int64        `json:"height"`
	Timestamp        int64        `json:"timestamp"`
	Difficulty       Difficulty   `json:"difficulty"`
	NBits            int64        `json:"nBits"`
	StateRoot        string       `json:"stateRoot"`
	TransactionsRoot string       `json:"transactionsRoot"`
	ADProofsRoot     string       `json:"adProofsRoot"`
	ExtensionHash    string       `json:"extensionHash"`
	PowSolutions     PowSolutions `json:"powSolutions"`
	Votes            string       `json:"votes"`
}

// PowSolutions carries the autolykos solution of a header. The d component
// is an arbitrarily large integer and is kept raw.
type PowSolutions struct {
	PK string          `json:"pk"`
	W  string          `json:"w"`
	N  string          `json:"n"`
	D  json.RawMessage `json:"d,omitempty"`
}

// FullBlock is the response of GET /blocks/{id}.
type FullBlock struct {
	Header            BlockHeader       `json:"header"`
	BlockTransactions BlockTransactions `json:"blockTransactions"`
	Size              int64             `json:"size"`
}

type BlockTransactions struct {
	HeaderID     string        `json:"headerId"`
	Transactions []Transaction `json:"transactions"`
	BlockVersion int32         `json:"blockVersion"`
	Size         int64         `json:"size"`
}

type Transaction struct {
	ID         string      `json:"id"`
	Inputs     []TxInput   `json:"inputs"`
	DataInputs []DataInput `json:"dataInputs"`
	Outputs    []TxOutput  `json:"outputs"`
	Size       int64       `json:"size"`
}

type TxInput struct {
	BoxID         string         `json:"boxId"`
	SpendingProof *SpendingProof `json:"spendingProof,omitempty"`
}

type SpendingProof struct {
	ProofBytes string            `json:"proofBytes"`
	Extension  map[string]string `json:"extension,omitempty"`
}

// DataInput is a read-only transaction input. It does not spend the box.
type DataInput struct {
	BoxID string `json:"boxId"`
}

type TxOutput struct {
	BoxID               string            `json:"boxId"`
	TransactionID       string            `json:"transactionId"`
	Index               int32             `json:"index"`
	Value               int64             `json:"value"`
	ErgoTree            string            `json:"ergoTree"`
	CreationHeight      int64             `json:"creationHeight"`
	Assets              []Asset           `json:"assets"`
	AdditionalRegisters map[string]string `json:"additionalRegisters"`
}

type Asset struct {
	TokenID string `json:"tokenId"`
	Amount  int64  `json:"amount"`
}
