package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000070c0")
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	spender   = common.HexToAddress("0x0000000000000000000000000000000000000b22")
	receiver  = common.HexToAddress("0x0000000000000000000000000000000000000c33")
)

func setupToken(t *testing.T) (*chain.State, *Token) {
	state := chain.New(big.NewInt(31337))
	token := NewToken("Mock Token", "MOCK", 18, common.Address{})
	require.NoError(t, state.Deploy(tokenAddr, token))
	token.SetBalance(owner, big.NewInt(1000))
	return state, token
}

func send(t *testing.T, state *chain.State, from common.Address, data []byte) (*chain.Receipt, error) {
	t.Helper()
	return state.Send(context.Background(), chain.Message{From: from, To: tokenAddr, Data: data})
}

func TestTransfer(t *testing.T) {
	state, token := setupToken(t)

	data, err := PackTransfer(receiver, big.NewInt(400))
	require.NoError(t, err)
	receipt, err := send(t, state, owner, data)
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1, "transfer should emit one Transfer event")

	assert.Equal(t, big.NewInt(600), token.BalanceOf(owner))
	assert.Equal(t, big.NewInt(400), token.BalanceOf(receiver))
	assert.Equal(t, big.NewInt(1000), token.TotalSupply())
}

func TestTransferInsufficientBalance(t *testing.T) {
	state, token := setupToken(t)

	data, err := PackTransfer(receiver, big.NewInt(1001))
	require.NoError(t, err)
	_, err = send(t, state, owner, data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, revert.ErrInsufficientBalance))
	assert.Equal(t, big.NewInt(1000), token.BalanceOf(owner), "failed transfer must not move funds")
}

func TestApproveAndTransferFrom(t *testing.T) {
	state, token := setupToken(t)

	data, err := PackApprove(spender, big.NewInt(300))
	require.NoError(t, err)
	_, err = send(t, state, owner, data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), token.Allowance(owner, spender))

	data, err = PackTransferFrom(owner, receiver, big.NewInt(200))
	require.NoError(t, err)
	_, err = send(t, state, spender, data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), token.Allowance(owner, spender))
	assert.Equal(t, big.NewInt(200), token.BalanceOf(receiver))

	_, err = send(t, state, spender, data)
	assert.True(t, errors.Is(err, revert.ErrInsufficientAllowance))
}

func TestMaxAllowanceIsNotSpent(t *testing.T) {
	state, token := setupToken(t)

	data, err := PackApprove(spender, math.MaxBig256)
	require.NoError(t, err)
	_, err = send(t, state, owner, data)
	require.NoError(t, err)

	data, err = PackTransferFrom(owner, receiver, big.NewInt(10))
	require.NoError(t, err)
	_, err = send(t, state, spender, data)
	require.NoError(t, err)
	assert.Equal(t, math.MaxBig256, token.Allowance(owner, spender))
}

func TestMintRestrictedToMinter(t *testing.T) {
	state := chain.New(big.NewInt(31337))
	token := NewToken("Mock Token", "MOCK", 18, owner)
	require.NoError(t, state.Deploy(tokenAddr, token))

	data, err := PackMint(receiver, big.NewInt(5))
	require.NoError(t, err)

	_, err = send(t, state, spender, data)
	assert.True(t, errors.Is(err, revert.ErrUnauthorized))

	_, err = send(t, state, owner, data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), token.BalanceOf(receiver))
}

func TestReadThroughCall(t *testing.T) {
	state, _ := setupToken(t)

	data, err := PackBalanceOf(owner)
	require.NoError(t, err)
	ret, err := state.Call(context.Background(), chain.Message{From: receiver, To: tokenAddr, Data: data})
	require.NoError(t, err)

	balance, err := UnpackUint256("balanceOf", ret)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), balance)
}

func TestClientHelpers(t *testing.T) {
	state, token := setupToken(t)

	_, err := state.Transact(context.Background(), chain.Message{From: owner, To: owner}, func(env *chain.Env) ([]byte, error) {
		// env.Self() is owner here, so helper calls are made on its behalf
		if err := Approve(env, tokenAddr, spender, big.NewInt(50)); err != nil {
			return nil, err
		}
		allowance, err := Allowance(env, tokenAddr, owner, spender)
		if err != nil {
			return nil, err
		}
		assert.Equal(t, big.NewInt(50), allowance)

		if err := Transfer(env, tokenAddr, receiver, big.NewInt(1)); err != nil {
			return nil, err
		}
		balance, err := BalanceOf(env, tokenAddr, receiver)
		assert.Equal(t, big.NewInt(1), balance)
		return nil, err
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(999), token.BalanceOf(owner))

	_, err = state.Transact(context.Background(), chain.Message{From: owner, To: owner}, func(env *chain.Env) ([]byte, error) {
		_, err := BalanceOf(env, receiver, owner)
		return nil, err
	})
	assert.True(t, errors.Is(err, revert.ErrCallToNonContract), "token without code should be rejected")
}
