package model

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type ExecutionKind string
type ExecutionStatus string

const (
	// ExecutionDirect is a batch submitted by the user itself
	ExecutionDirect ExecutionKind = "direct"
	// ExecutionSigned is a batch authorized by a router signer
	ExecutionSigned ExecutionKind = "signed"
)

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

type Fee struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

// Execution is the node side record of one batch sent through the router.
// Failed batches leave no trace on chain, so this is the only place their
// revert reason survives.
type Execution struct {
	// a unique, time sorted id
	ID string `json:"id"`

	User  common.Address `json:"user"`
	Agent common.Address `json:"agent"`

	Kind   ExecutionKind   `json:"kind"`
	Signer *common.Address `json:"signer,omitempty"`

	Referral uint16 `json:"referral"`
	// Methods names every logic call in order, or its selector when unknown
	Methods []string `json:"methods,omitempty"`

	// native value sent along the transaction, in wei
	Value string `json:"value"`
	Fees  []Fee  `json:"fees,omitempty"`

	Status    ExecutionStatus `json:"status"`
	ErrorCode string          `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`

	TxHash      *common.Hash `json:"tx_hash,omitempty"`
	BlockNumber uint64       `json:"block_number,omitempty"`

	// epoch in milliseconds
	CreatedAt int64 `json:"created_at"`
}

// Generate a sorted uuid
func GenerateExecutionID() string {
	return ulid.Make().String()
}

func NewExecution(user, agent common.Address, kind ExecutionKind, value *big.Int) *Execution {
	if value == nil {
		value = new(big.Int)
	}
	return &Execution{
		ID:        GenerateExecutionID(),
		User:      user,
		Agent:     agent,
		Kind:      kind,
		Value:     value.String(),
		CreatedAt: time.Now().UnixMilli(),
	}
}

func (e *Execution) Succeeded() bool {
	return e.Status == ExecutionSuccess
}

// Return a compact json ready to persist to storage
func (e *Execution) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Execution) FromStorageData(body []byte) error {
	return json.Unmarshal(body, e)
}

// FormatAmount renders a base unit amount with the given decimals, e.g.
// 1500000000000000000 with 18 decimals is "1.5".
func FormatAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseAmount is the inverse of FormatAmount. Precision beyond decimals is
// truncated.
func ParseAmount(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// FormatFeeRate renders a rate in basis points as a percentage, e.g. 20 is "0.2%".
func FormatFeeRate(bps uint64) string {
	return decimal.New(int64(bps), -2).String() + "%"
}
