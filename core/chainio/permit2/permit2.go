// Package permit2 implements an allowance registry in the style of Uniswap's
// Permit2 AllowanceTransfer. Owners approve the registry on the token once,
// then grant time bounded allowances to spenders which the registry enforces
// when the spender pulls funds with transferFrom.
package permit2

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var Permit2MetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"spender","type":"address"},{"name":"amount","type":"uint160"},{"name":"expiration","type":"uint48"}],"outputs":[]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"amount","type":"uint160"},{"name":"expiration","type":"uint48"},{"name":"nonce","type":"uint48"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint160"},{"name":"token","type":"address"}],"outputs":[]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"transferDetails","type":"tuple[]","components":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint160"},{"name":"token","type":"address"}]}],"outputs":[]},
{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"token","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"amount","type":"uint160","indexed":false},{"name":"expiration","type":"uint48","indexed":false}]}
]`,
}

var registryABI = chain.MustParseABI(Permit2MetaData.ABI)

// go-ethereum names the overloaded batch variant transferFrom0.
const (
	methodTransferFrom      = "transferFrom"
	methodTransferFromBatch = "transferFrom0"
)

var (
	TransferFromSelector      = registryABI.Methods[methodTransferFrom].ID
	TransferFromBatchSelector = registryABI.Methods[methodTransferFromBatch].ID
)

type AllowanceTransferDetails struct {
	From   common.Address `abi:"from"`
	To     common.Address `abi:"to"`
	Amount *big.Int       `abi:"amount"`
	Token  common.Address `abi:"token"`
}

type Allowance struct {
	Amount     *big.Int
	Expiration uint64
	Nonce      uint64
}

type allowanceKey struct {
	owner, token, spender common.Address
}

type Permit2 struct {
	allowances map[allowanceKey]Allowance
}

func New() *Permit2 {
	return &Permit2{allowances: make(map[allowanceKey]Allowance)}
}

func (p *Permit2) Allowance(owner, token, spender common.Address) Allowance {
	a, ok := p.allowances[allowanceKey{owner, token, spender}]
	if !ok {
		return Allowance{Amount: new(big.Int)}
	}
	return Allowance{Amount: new(big.Int).Set(a.Amount), Expiration: a.Expiration, Nonce: a.Nonce}
}

func (p *Permit2) Run(env *chain.Env) ([]byte, error) {
	method, args, err := chain.DecodeCall(&registryABI, env.Data())
	if err != nil {
		return nil, err
	}
	if method == nil || env.Value().Sign() > 0 {
		return nil, revert.Errorf(revert.CodeExecutionReverted, "permit2 does not accept native value")
	}

	switch method.RawName {
	case "approve":
		return nil, p.Approve(env, env.Caller(), args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int), args[3].(*big.Int).Uint64())
	case "allowance":
		a := p.Allowance(args[0].(common.Address), args[1].(common.Address), args[2].(common.Address))
		return method.Outputs.Pack(a.Amount, new(big.Int).SetUint64(a.Expiration), new(big.Int).SetUint64(a.Nonce))
	case "transferFrom":
		details, err := DecodeTransferFrom(env.Data())
		if err != nil {
			return nil, err
		}
		for _, d := range details {
			if err := p.TransferFrom(env, env.Caller(), d); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, revert.Errorf(revert.CodeExecutionReverted, "permit2: unsupported method %s", method.Name)
}

// Approve sets spender's allowance over owner's token. An expiration of zero
// never expires.
func (p *Permit2) Approve(env *chain.Env, owner, token, spender common.Address, amount *big.Int, expiration uint64) error {
	key := allowanceKey{owner, token, spender}
	prev, existed := p.allowances[key]
	p.allowances[key] = Allowance{Amount: new(big.Int).Set(amount), Expiration: expiration, Nonce: prev.Nonce}
	env.Journal(func() {
		if !existed {
			delete(p.allowances, key)
			return
		}
		p.allowances[key] = prev
	})
	return env.EmitEvent(registryABI.Events["Approval"], owner, token, spender, amount, new(big.Int).SetUint64(expiration))
}

func (p *Permit2) TransferFrom(env *chain.Env, spender common.Address, d AllowanceTransferDetails) error {
	key := allowanceKey{d.From, d.Token, spender}
	a, ok := p.allowances[key]
	if !ok || a.Amount.Cmp(d.Amount) < 0 {
		return revert.NewStructuredError(revert.CodeInsufficientAllowance, "permit2 allowance too low", map[string]interface{}{
			"owner":   d.From.Hex(),
			"token":   d.Token.Hex(),
			"spender": spender.Hex(),
			"amount":  d.Amount.String(),
		})
	}
	if a.Expiration != 0 && uint64(env.Now().Unix()) > a.Expiration {
		return revert.Errorf(revert.CodeSignatureExpired, "permit2 allowance for %s expired at %d", spender.Hex(), a.Expiration)
	}

	if a.Amount.Cmp(maxUint160) != 0 {
		p.allowances[key] = Allowance{Amount: new(big.Int).Sub(a.Amount, d.Amount), Expiration: a.Expiration, Nonce: a.Nonce}
		env.Journal(func() { p.allowances[key] = a })
	}

	return erc20.TransferFrom(env, d.Token, d.From, d.To, d.Amount)
}

var maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))

func MaxAmount() *big.Int {
	return new(big.Int).Set(maxUint160)
}

// IsTransferFrom reports whether data calls one of the transferFrom variants.
func IsTransferFrom(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.Equal(data[:4], TransferFromSelector) || bytes.Equal(data[:4], TransferFromBatchSelector)
}

// DecodeTransferFrom unpacks either transferFrom variant into the list of
// transfers it requests.
func DecodeTransferFrom(data []byte) ([]AllowanceTransferDetails, error) {
	if !IsTransferFrom(data) {
		return nil, revert.ErrInvalidPermit2Data
	}

	if bytes.Equal(data[:4], TransferFromSelector) {
		args, err := registryABI.Methods[methodTransferFrom].Inputs.Unpack(data[4:])
		if err != nil {
			return nil, revert.Errorf(revert.CodeInvalidPermit2Data, "malformed transferFrom: %v", err)
		}
		return []AllowanceTransferDetails{{
			From:   args[0].(common.Address),
			To:     args[1].(common.Address),
			Amount: args[2].(*big.Int),
			Token:  args[3].(common.Address),
		}}, nil
	}

	args, err := registryABI.Methods[methodTransferFromBatch].Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert.Errorf(revert.CodeInvalidPermit2Data, "malformed batch transferFrom: %v", err)
	}
	var details []AllowanceTransferDetails
	if err := convert(args[0], &details); err != nil {
		return nil, revert.Errorf(revert.CodeInvalidPermit2Data, "malformed batch transferFrom: %v", err)
	}
	return details, nil
}

func PackApprove(token, spender common.Address, amount *big.Int, expiration uint64) ([]byte, error) {
	return registryABI.Pack("approve", token, spender, amount, new(big.Int).SetUint64(expiration))
}

func PackTransferFrom(from, to common.Address, amount *big.Int, token common.Address) ([]byte, error) {
	return registryABI.Pack(methodTransferFrom, from, to, amount, token)
}

func PackTransferFromBatch(details []AllowanceTransferDetails) ([]byte, error) {
	return registryABI.Pack(methodTransferFromBatch, details)
}

func convert(in interface{}, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	abi.ConvertType(in, out)
	return nil
}
