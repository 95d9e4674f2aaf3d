// Package erc20 implements a fungible token contract for the in-process chain,
// and the caller side helpers used by agents and the router to move tokens.
package erc20

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

var ERC20MetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`,
}

var tokenABI = chain.MustParseABI(ERC20MetaData.ABI)

func ABI() *abi.ABI {
	return &tokenABI
}

// Token is a plain ERC-20. Balances and allowances live in Go maps and every
// mutation is journaled through the executing Env.
type Token struct {
	name     string
	symbol   string
	decimals uint8
	minter   common.Address

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

// NewToken creates a token. minter is the only account allowed to call mint
// through the ABI; the zero address leaves minting open, which dev networks use
// as a faucet.
func NewToken(name, symbol string, decimals uint8, minter common.Address) *Token {
	return &Token{
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		minter:      minter,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Name() string    { return t.name }
func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) TotalSupply() *big.Int {
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) BalanceOf(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// SetBalance overwrites a balance outside of any transaction. Genesis only.
func (t *Token) SetBalance(account common.Address, amount *big.Int) {
	prev := t.BalanceOf(account)
	t.totalSupply = new(big.Int).Add(new(big.Int).Sub(t.totalSupply, prev), amount)
	t.balances[account] = new(big.Int).Set(amount)
}

func (t *Token) Run(env *chain.Env) ([]byte, error) {
	method, args, err := chain.DecodeCall(&tokenABI, env.Data())
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, revert.Errorf(revert.CodeExecutionReverted, "%s does not accept native value", t.symbol)
	}

	switch method.Name {
	case "name":
		return method.Outputs.Pack(t.name)
	case "symbol":
		return method.Outputs.Pack(t.symbol)
	case "decimals":
		return method.Outputs.Pack(t.decimals)
	case "totalSupply":
		return method.Outputs.Pack(t.TotalSupply())
	case "balanceOf":
		return method.Outputs.Pack(t.BalanceOf(args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(t.Allowance(args[0].(common.Address), args[1].(common.Address)))
	case "transfer":
		if err := t.Transfer(env, env.Caller(), args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "transferFrom":
		if err := t.TransferFrom(env, env.Caller(), args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "approve":
		if err := t.Approve(env, env.Caller(), args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "mint":
		if t.minter != (common.Address{}) && env.Caller() != t.minter {
			return nil, revert.Errorf(revert.CodeUnauthorized, "%s: caller %s is not the minter", t.symbol, env.Caller().Hex())
		}
		return nil, t.Mint(env, args[0].(common.Address), args[1].(*big.Int))
	}
	return nil, revert.Errorf(revert.CodeExecutionReverted, "%s: unsupported method %s", t.symbol, method.Name)
}

func (t *Token) Transfer(env *chain.Env, from, to common.Address, amount *big.Int) error {
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return revert.NewStructuredError(revert.CodeInsufficientBalance, t.symbol+" balance too low", map[string]interface{}{
			"account": from.Hex(),
			"balance": balance.String(),
			"amount":  amount.String(),
		})
	}

	t.setBalance(env, from, balance.Sub(balance, amount))
	t.setBalance(env, to, new(big.Int).Add(t.BalanceOf(to), amount))
	return env.EmitEvent(tokenABI.Events["Transfer"], from, to, amount)
}

// TransferFrom spends spender's allowance on from. An allowance of
// MaxUint256 is never decreased.
func (t *Token) TransferFrom(env *chain.Env, spender, from, to common.Address, amount *big.Int) error {
	if spender != from {
		allowance := t.Allowance(from, spender)
		if allowance.Cmp(amount) < 0 {
			return revert.NewStructuredError(revert.CodeInsufficientAllowance, t.symbol+" allowance too low", map[string]interface{}{
				"owner":     from.Hex(),
				"spender":   spender.Hex(),
				"allowance": allowance.String(),
				"amount":    amount.String(),
			})
		}
		if allowance.Cmp(math.MaxBig256) != 0 {
			t.setAllowance(env, from, spender, allowance.Sub(allowance, amount))
		}
	}
	return t.Transfer(env, from, to, amount)
}

func (t *Token) Approve(env *chain.Env, owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return revert.Errorf(revert.CodeInvalidAddress, "%s: approve to the zero address", t.symbol)
	}
	t.setAllowance(env, owner, spender, new(big.Int).Set(amount))
	return env.EmitEvent(tokenABI.Events["Approval"], owner, spender, amount)
}

func (t *Token) Mint(env *chain.Env, to common.Address, amount *big.Int) error {
	t.setTotalSupply(env, new(big.Int).Add(t.totalSupply, amount))
	t.setBalance(env, to, new(big.Int).Add(t.BalanceOf(to), amount))
	return env.EmitEvent(tokenABI.Events["Transfer"], common.Address{}, to, amount)
}

func (t *Token) Burn(env *chain.Env, from common.Address, amount *big.Int) error {
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return revert.NewStructuredError(revert.CodeInsufficientBalance, t.symbol+" balance too low", map[string]interface{}{
			"account": from.Hex(),
			"balance": balance.String(),
			"amount":  amount.String(),
		})
	}
	t.setBalance(env, from, balance.Sub(balance, amount))
	t.setTotalSupply(env, new(big.Int).Sub(t.totalSupply, amount))
	return env.EmitEvent(tokenABI.Events["Transfer"], from, common.Address{}, amount)
}

func (t *Token) setBalance(env *chain.Env, account common.Address, amount *big.Int) {
	prev, existed := t.balances[account]
	t.balances[account] = amount
	env.Journal(func() {
		if !existed {
			delete(t.balances, account)
			return
		}
		t.balances[account] = prev
	})
}

func (t *Token) setAllowance(env *chain.Env, owner, spender common.Address, amount *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	prev, existed := t.allowances[owner][spender]
	t.allowances[owner][spender] = amount
	env.Journal(func() {
		if !existed {
			delete(t.allowances[owner], spender)
			return
		}
		t.allowances[owner][spender] = prev
	})
}

func (t *Token) setTotalSupply(env *chain.Env, amount *big.Int) {
	prev := t.totalSupply
	t.totalSupply = amount
	env.Journal(func() { t.totalSupply = prev })
}
