package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/AvaProtocol/ap-router/core/logic"
)

// Wire shapes of the node API. Amounts travel as base 10 strings and byte
// strings as 0x hex so that any JSON client can build a batch.

type Input struct {
	Token          string `json:"token" validate:"required,eth_addr"`
	BalanceBps     string `json:"balance_bps,omitempty" validate:"omitempty,uint256"`
	AmountOrOffset string `json:"amount_or_offset" validate:"required,uint256"`
}

type Logic struct {
	To        string  `json:"to" validate:"required,eth_addr"`
	Data      string  `json:"data,omitempty" validate:"omitempty,hexbytes"`
	Inputs    []Input `json:"inputs,omitempty" validate:"dive"`
	WrapMode  uint8   `json:"wrap_mode,omitempty" validate:"lte=2"`
	ApproveTo string  `json:"approve_to,omitempty" validate:"omitempty,eth_addr"`
	Callback  string  `json:"callback,omitempty" validate:"omitempty,eth_addr"`
}

type BatchFee struct {
	Token    string `json:"token" validate:"required,eth_addr"`
	Amount   string `json:"amount" validate:"required,uint256"`
	Metadata string `json:"metadata,omitempty" validate:"omitempty,hexbytes"`
}

type LogicBatch struct {
	Logics   []Logic    `json:"logics" validate:"dive"`
	Fees     []BatchFee `json:"fees,omitempty" validate:"dive"`
	Deadline string     `json:"deadline" validate:"required,uint256"`
}

type ExecuteRequest struct {
	Permit2Datas []string `json:"permit2_datas,omitempty" validate:"dive,hexbytes"`
	Logics       []Logic  `json:"logics" validate:"dive"`
	TokensReturn []string `json:"tokens_return,omitempty" validate:"dive,eth_addr"`
	Referral     uint16   `json:"referral,omitempty"`
	// native value sent along, in wei
	Value string `json:"value,omitempty" validate:"omitempty,uint256"`
	// Sender lets an admin key submit for another account
	Sender string `json:"sender,omitempty" validate:"omitempty,eth_addr"`
}

type SignedExecuteRequest struct {
	Permit2Datas []string   `json:"permit2_datas,omitempty" validate:"dive,hexbytes"`
	Batch        LogicBatch `json:"batch"`
	Signer       string     `json:"signer" validate:"required,eth_addr"`
	Signature    string     `json:"signature" validate:"required,hexbytes"`
	TokensReturn []string   `json:"tokens_return,omitempty" validate:"dive,eth_addr"`
	Referral     uint16     `json:"referral,omitempty"`
	Value        string     `json:"value,omitempty" validate:"omitempty,uint256"`
	Sender       string     `json:"sender,omitempty" validate:"omitempty,eth_addr"`
}

// ParseUint256 reads a base 10 amount. The empty string is zero.
func ParseUint256(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("invalid uint256 %q", s)
	}
	return v, nil
}

// ParseBytes reads 0x prefixed hex. The empty string is nil.
func ParseBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

func parseAddresses(in []string) []common.Address {
	out := make([]common.Address, len(in))
	for i, a := range in {
		out[i] = common.HexToAddress(a)
	}
	return out
}

func parseByteList(in []string) ([][]byte, error) {
	out := make([][]byte, len(in))
	for i, s := range in {
		b, err := ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("permit2_datas[%d]: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func (in Input) ToInput() (logic.Input, error) {
	bps, err := ParseUint256(in.BalanceBps)
	if err != nil {
		return logic.Input{}, err
	}
	amount, err := ParseUint256(in.AmountOrOffset)
	if err != nil {
		return logic.Input{}, err
	}
	return logic.Input{Token: common.HexToAddress(in.Token), BalanceBps: bps, AmountOrOffset: amount}, nil
}

func (l Logic) ToLogic() (logic.Logic, error) {
	data, err := ParseBytes(l.Data)
	if err != nil {
		return logic.Logic{}, fmt.Errorf("data: %w", err)
	}
	inputs := make([]logic.Input, len(l.Inputs))
	for i, in := range l.Inputs {
		if inputs[i], err = in.ToInput(); err != nil {
			return logic.Logic{}, fmt.Errorf("inputs[%d]: %w", i, err)
		}
	}
	return logic.Logic{
		To:        common.HexToAddress(l.To),
		Data:      data,
		Inputs:    inputs,
		WrapMode:  l.WrapMode,
		ApproveTo: addressOrZero(l.ApproveTo),
		Callback:  addressOrZero(l.Callback),
	}, nil
}

func ToLogics(in []Logic) ([]logic.Logic, error) {
	out := make([]logic.Logic, len(in))
	for i, l := range in {
		var err error
		if out[i], err = l.ToLogic(); err != nil {
			return nil, fmt.Errorf("logics[%d]: %w", i, err)
		}
	}
	return out, nil
}

func (f BatchFee) ToFee() (logic.Fee, error) {
	amount, err := ParseUint256(f.Amount)
	if err != nil {
		return logic.Fee{}, err
	}
	metadata, err := ParseBytes(f.Metadata)
	if err != nil {
		return logic.Fee{}, err
	}
	if len(metadata) > 32 {
		return logic.Fee{}, fmt.Errorf("metadata longer than 32 bytes")
	}
	fee := logic.Fee{Token: common.HexToAddress(f.Token), Amount: amount}
	copy(fee.Metadata[:], metadata)
	return fee, nil
}

func (b LogicBatch) ToBatch() (logic.LogicBatch, error) {
	logics, err := ToLogics(b.Logics)
	if err != nil {
		return logic.LogicBatch{}, err
	}
	fees := make([]logic.Fee, len(b.Fees))
	for i, f := range b.Fees {
		if fees[i], err = f.ToFee(); err != nil {
			return logic.LogicBatch{}, fmt.Errorf("fees[%d]: %w", i, err)
		}
	}
	deadline, err := ParseUint256(b.Deadline)
	if err != nil {
		return logic.LogicBatch{}, fmt.Errorf("deadline: %w", err)
	}
	return logic.LogicBatch{Logics: logics, Fees: fees, Deadline: deadline}, nil
}

func addressOrZero(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

// The From* helpers go the other way, for clients building requests from
// typed values.

func FromLogic(l logic.Logic) Logic {
	inputs := make([]Input, len(l.Inputs))
	for i, in := range l.Inputs {
		inputs[i] = Input{
			Token:          in.Token.Hex(),
			BalanceBps:     bigOrZero(in.BalanceBps),
			AmountOrOffset: bigOrZero(in.AmountOrOffset),
		}
	}
	out := Logic{
		To:       l.To.Hex(),
		Inputs:   inputs,
		WrapMode: l.WrapMode,
	}
	if len(l.Data) > 0 {
		out.Data = hexutil.Encode(l.Data)
	}
	if l.ApproveTo != (common.Address{}) {
		out.ApproveTo = l.ApproveTo.Hex()
	}
	if l.Callback != (common.Address{}) {
		out.Callback = l.Callback.Hex()
	}
	return out
}

func FromLogics(in []logic.Logic) []Logic {
	out := make([]Logic, len(in))
	for i, l := range in {
		out[i] = FromLogic(l)
	}
	return out
}

func FromBatch(b logic.LogicBatch) LogicBatch {
	fees := make([]BatchFee, len(b.Fees))
	for i, f := range b.Fees {
		fees[i] = BatchFee{Token: f.Token.Hex(), Amount: bigOrZero(f.Amount), Metadata: hexutil.Encode(f.Metadata[:])}
	}
	return LogicBatch{Logics: FromLogics(b.Logics), Fees: fees, Deadline: bigOrZero(b.Deadline)}
}

func (r ExecuteRequest) Parse() (permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address, value *big.Int, err error) {
	if permit2Datas, err = parseByteList(r.Permit2Datas); err != nil {
		return
	}
	if logics, err = ToLogics(r.Logics); err != nil {
		return
	}
	if value, err = ParseUint256(r.Value); err != nil {
		return
	}
	return permit2Datas, logics, parseAddresses(r.TokensReturn), value, nil
}

func (r SignedExecuteRequest) Parse() (permit2Datas [][]byte, batch logic.LogicBatch, signature []byte, tokensReturn []common.Address, value *big.Int, err error) {
	if permit2Datas, err = parseByteList(r.Permit2Datas); err != nil {
		return
	}
	if batch, err = r.Batch.ToBatch(); err != nil {
		return
	}
	if signature, err = ParseBytes(r.Signature); err != nil {
		return
	}
	if value, err = ParseUint256(r.Value); err != nil {
		return
	}
	return permit2Datas, batch, signature, parseAddresses(r.TokensReturn), value, nil
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
