package erc20

import (
	"fmt"
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
)

// The helpers below talk to any token through its ABI from inside a running
// contract, the way a Solidity caller would through an interface.

func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transfer", to, amount)
}

func PackTransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transferFrom", from, to, amount)
}

func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("approve", spender, amount)
}

func PackBalanceOf(account common.Address) ([]byte, error) {
	return tokenABI.Pack("balanceOf", account)
}

func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return tokenABI.Pack("allowance", owner, spender)
}

func PackMint(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("mint", to, amount)
}

// UnpackUint256 decodes the single uint256 returned by balanceOf, allowance or
// totalSupply.
func UnpackUint256(method string, ret []byte) (*big.Int, error) {
	out, err := tokenABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack %s: unexpected output count %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

func BalanceOf(env *chain.Env, token, account common.Address) (*big.Int, error) {
	return callUint256(env, token, "balanceOf", account)
}

func Allowance(env *chain.Env, token, owner, spender common.Address) (*big.Int, error) {
	return callUint256(env, token, "allowance", owner, spender)
}

func Transfer(env *chain.Env, token, to common.Address, amount *big.Int) error {
	data, err := PackTransfer(to, amount)
	if err != nil {
		return err
	}
	return callBool(env, token, "transfer", data)
}

func TransferFrom(env *chain.Env, token, from, to common.Address, amount *big.Int) error {
	data, err := PackTransferFrom(from, to, amount)
	if err != nil {
		return err
	}
	return callBool(env, token, "transferFrom", data)
}

func Approve(env *chain.Env, token, spender common.Address, amount *big.Int) error {
	data, err := PackApprove(spender, amount)
	if err != nil {
		return err
	}
	return callBool(env, token, "approve", data)
}

func callUint256(env *chain.Env, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	if !env.HasCode(token) {
		return nil, revert.Errorf(revert.CodeCallToNonContract, "token %s has no code", token.Hex())
	}
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	ret, err := env.Call(token, nil, data)
	if err != nil {
		return nil, err
	}
	return UnpackUint256(method, ret)
}

// callBool accepts tokens that return nothing as well as tokens that return
// true, like SafeERC20 does.
func callBool(env *chain.Env, token common.Address, method string, data []byte) error {
	if !env.HasCode(token) {
		return revert.Errorf(revert.CodeCallToNonContract, "token %s has no code", token.Hex())
	}
	ret, err := env.Call(token, nil, data)
	if err != nil {
		return err
	}
	if len(ret) == 0 {
		return nil
	}
	out, err := tokenABI.Unpack(method, ret)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if ok, _ := out[0].(bool); !ok {
		return revert.Errorf(revert.CodeExecutionReverted, "token %s: %s returned false", token.Hex(), method)
	}
	return nil
}
