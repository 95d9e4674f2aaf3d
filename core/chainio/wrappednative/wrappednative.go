// Package wrappednative implements the wrapped form of the chain's native
// asset. Depositing native value mints the same amount of tokens to the
// sender; withdrawing burns tokens and pays native value back.
package wrappednative

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var WrappedNativeMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"event","name":"Deposit","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"Withdrawal","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`,
}

var wrapperABI = chain.MustParseABI(WrappedNativeMetaData.ABI)

type WrappedNative struct {
	*erc20.Token
}

func New(name, symbol string) *WrappedNative {
	// Supply only changes through deposit and withdraw.
	return &WrappedNative{Token: erc20.NewToken(name, symbol, 18, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))}
}

func (w *WrappedNative) Run(env *chain.Env) ([]byte, error) {
	data := env.Data()
	if len(data) == 0 {
		return nil, w.Deposit(env, env.Caller(), env.Value())
	}
	if len(data) >= 4 {
		if method, err := wrapperABI.MethodById(data[:4]); err == nil {
			args, err := method.Inputs.Unpack(data[4:])
			if err != nil {
				return nil, revert.Errorf(revert.CodeExecutionReverted, "malformed %s arguments: %v", method.Name, err)
			}
			switch method.Name {
			case "deposit":
				return nil, w.Deposit(env, env.Caller(), env.Value())
			case "withdraw":
				return nil, w.Withdraw(env, env.Caller(), args[0].(*big.Int))
			}
		}
	}
	if env.Value().Sign() > 0 {
		return nil, revert.Errorf(revert.CodeExecutionReverted, "%s: method is not payable", w.Symbol())
	}
	return w.Token.Run(env)
}

// Deposit mints amount to account. The native value must already have been
// moved to the contract by the message carrying it.
func (w *WrappedNative) Deposit(env *chain.Env, account common.Address, amount *big.Int) error {
	if err := w.Mint(env, account, amount); err != nil {
		return err
	}
	return env.EmitEvent(wrapperABI.Events["Deposit"], account, amount)
}

func (w *WrappedNative) Withdraw(env *chain.Env, account common.Address, amount *big.Int) error {
	if err := w.Burn(env, account, amount); err != nil {
		return err
	}
	if err := env.Transfer(account, amount); err != nil {
		return err
	}
	return env.EmitEvent(wrapperABI.Events["Withdrawal"], account, amount)
}

func PackDeposit() ([]byte, error) {
	return wrapperABI.Pack("deposit")
}

func PackWithdraw(amount *big.Int) ([]byte, error) {
	return wrapperABI.Pack("withdraw", amount)
}
