// Package logic defines the steps a router batch is made of, how input
// amounts are resolved against an agent's balance, and how batches are encoded
// and hashed for signing.
package logic

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// BPSNotUsed disables percentage mode for an input.
	BPSNotUsed = 0
	BPSBase    = 10000
)

const (
	WrapModeNone uint8 = iota
	WrapModeWrapBefore
	WrapModeUnwrapAfter
)

var (
	// NativeToken stands for the chain's native asset wherever a token
	// address is expected.
	NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

	// OffsetNotUsed marks an input whose amount is a share of the balance
	// that is not written into the call data.
	OffsetNotUsed = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Input is a quantity the agent makes available to a logic before calling it.
// Field order follows the ABI tuple.
type Input struct {
	Token          common.Address `json:"token"`
	BalanceBps     *big.Int       `json:"balanceBps"`
	AmountOrOffset *big.Int       `json:"amountOrOffset"`
}

// Logic is one call in a batch. Data stays a plain []byte so the ABI packer
// accepts it; JSON carries it as 0x hex.
type Logic struct {
	To        common.Address
	Data      []byte
	Inputs    []Input
	WrapMode  uint8
	ApproveTo common.Address
	Callback  common.Address
}

type logicJSON struct {
	To        common.Address `json:"to"`
	Data      hexutil.Bytes  `json:"data"`
	Inputs    []Input        `json:"inputs"`
	WrapMode  uint8          `json:"wrapMode"`
	ApproveTo common.Address `json:"approveTo"`
	Callback  common.Address `json:"callback"`
}

func (l Logic) MarshalJSON() ([]byte, error) {
	return json.Marshal(logicJSON{
		To:        l.To,
		Data:      l.Data,
		Inputs:    l.Inputs,
		WrapMode:  l.WrapMode,
		ApproveTo: l.ApproveTo,
		Callback:  l.Callback,
	})
}

func (l *Logic) UnmarshalJSON(input []byte) error {
	var dec logicJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	*l = Logic{
		To:        dec.To,
		Data:      dec.Data,
		Inputs:    dec.Inputs,
		WrapMode:  dec.WrapMode,
		ApproveTo: dec.ApproveTo,
		Callback:  dec.Callback,
	}
	return nil
}

// Fee is charged from the router to the fee collector when a signed batch
// runs.
type Fee struct {
	Token    common.Address `json:"token"`
	Amount   *big.Int       `json:"amount"`
	Metadata [32]byte       `json:"metadata"`
}

// LogicBatch is the envelope an allow-listed signer authorizes.
type LogicBatch struct {
	Logics   []Logic  `json:"logics"`
	Fees     []Fee    `json:"fees"`
	Deadline *big.Int `json:"deadline"`
}

func NewInput(token common.Address, bps int64, amountOrOffset *big.Int) Input {
	return Input{Token: token, BalanceBps: big.NewInt(bps), AmountOrOffset: new(big.Int).Set(amountOrOffset)}
}

// FixedInput sources exactly amount of token.
func FixedInput(token common.Address, amount *big.Int) Input {
	return NewInput(token, BPSNotUsed, amount)
}

// ShareInput sources bps/10000 of the agent's balance of token.
func ShareInput(token common.Address, bps int64) Input {
	return NewInput(token, bps, OffsetNotUsed)
}

// ApproveTarget is the address that receives token allowances for this
// logic: ApproveTo when set, otherwise the call target.
func (l Logic) ApproveTarget() common.Address {
	if l.ApproveTo == (common.Address{}) {
		return l.To
	}
	return l.ApproveTo
}

func IsNative(token common.Address) bool {
	return token == NativeToken
}
