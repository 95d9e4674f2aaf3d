package wrappednative

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wrapperAddr = common.HexToAddress("0x000000000000000000000000000000000000beef")
	user        = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

func TestDepositAndWithdraw(t *testing.T) {
	state := chain.New(big.NewInt(31337))
	wrapped := New("Wrapped Ether", "WETH")
	require.NoError(t, state.Deploy(wrapperAddr, wrapped))
	state.Fund(user, big.NewInt(1000))

	data, err := PackDeposit()
	require.NoError(t, err)
	_, err = state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Value: big.NewInt(600), Data: data})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(600), wrapped.BalanceOf(user))
	assert.Equal(t, big.NewInt(400), state.BalanceOf(user))
	assert.Equal(t, big.NewInt(600), state.BalanceOf(wrapperAddr))

	data, err = PackWithdraw(big.NewInt(250))
	require.NoError(t, err)
	_, err = state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Data: data})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(350), wrapped.BalanceOf(user))
	assert.Equal(t, big.NewInt(650), state.BalanceOf(user))
	assert.Equal(t, big.NewInt(350), wrapped.TotalSupply())
}

func TestPlainTransferDeposits(t *testing.T) {
	state := chain.New(big.NewInt(31337))
	wrapped := New("Wrapped Ether", "WETH")
	require.NoError(t, state.Deploy(wrapperAddr, wrapped))
	state.Fund(user, big.NewInt(10))

	_, err := state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Value: big.NewInt(10)})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), wrapped.BalanceOf(user))
}

func TestWithdrawTooMuch(t *testing.T) {
	state := chain.New(big.NewInt(31337))
	wrapped := New("Wrapped Ether", "WETH")
	require.NoError(t, state.Deploy(wrapperAddr, wrapped))

	data, err := PackWithdraw(big.NewInt(1))
	require.NoError(t, err)
	_, err = state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Data: data})
	assert.True(t, errors.Is(err, revert.ErrInsufficientBalance))
}

func TestTokenMethodsStillWork(t *testing.T) {
	state := chain.New(big.NewInt(31337))
	wrapped := New("Wrapped Ether", "WETH")
	require.NoError(t, state.Deploy(wrapperAddr, wrapped))
	state.Fund(user, big.NewInt(10))

	_, err := state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Value: big.NewInt(10)})
	require.NoError(t, err)

	receiver := common.HexToAddress("0x0000000000000000000000000000000000000b22")
	data, err := erc20.PackTransfer(receiver, big.NewInt(4))
	require.NoError(t, err)
	_, err = state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Data: data})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), wrapped.BalanceOf(receiver))

	state.Fund(user, big.NewInt(1))
	_, err = state.Send(context.Background(), chain.Message{From: user, To: wrapperAddr, Data: data, Value: big.NewInt(1)})
	assert.Error(t, err, "non payable methods reject value")
}
