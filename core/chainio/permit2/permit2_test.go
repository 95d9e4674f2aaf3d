package permit2

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	permit2Addr = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000070c0")
	owner       = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	spender     = common.HexToAddress("0x0000000000000000000000000000000000000b22")
)

type fixture struct {
	state   *chain.State
	clock   *chain.ManualClock
	token   *erc20.Token
	permit2 *Permit2
}

func setup(t *testing.T) *fixture {
	clock := chain.NewManualClock(time.Unix(1_700_000_000, 0))
	state := chain.New(big.NewInt(31337), chain.WithClock(clock))
	token := erc20.NewToken("Mock Token", "MOCK", 18, common.Address{})
	p := New()
	require.NoError(t, state.Deploy(tokenAddr, token))
	require.NoError(t, state.Deploy(permit2Addr, p))
	token.SetBalance(owner, big.NewInt(1000))

	// owner lets the registry move the token
	data, err := erc20.PackApprove(permit2Addr, math.MaxBig256)
	require.NoError(t, err)
	_, err = state.Send(context.Background(), chain.Message{From: owner, To: tokenAddr, Data: data})
	require.NoError(t, err)

	return &fixture{state: state, clock: clock, token: token, permit2: p}
}

func (f *fixture) send(t *testing.T, from common.Address, data []byte) error {
	t.Helper()
	_, err := f.state.Send(context.Background(), chain.Message{From: from, To: permit2Addr, Data: data})
	return err
}

func TestTransferFromSingle(t *testing.T) {
	f := setup(t)

	data, err := PackApprove(tokenAddr, spender, big.NewInt(500), 0)
	require.NoError(t, err)
	require.NoError(t, f.send(t, owner, data))

	data, err = PackTransferFrom(owner, spender, big.NewInt(200), tokenAddr)
	require.NoError(t, err)
	require.NoError(t, f.send(t, spender, data))

	assert.Equal(t, big.NewInt(200), f.token.BalanceOf(spender))
	assert.Equal(t, big.NewInt(300), f.permit2.Allowance(owner, tokenAddr, spender).Amount)
}

func TestTransferFromBatch(t *testing.T) {
	f := setup(t)

	data, err := PackApprove(tokenAddr, spender, MaxAmount(), 0)
	require.NoError(t, err)
	require.NoError(t, f.send(t, owner, data))

	data, err = PackTransferFromBatch([]AllowanceTransferDetails{
		{From: owner, To: spender, Amount: big.NewInt(100), Token: tokenAddr},
		{From: owner, To: spender, Amount: big.NewInt(50), Token: tokenAddr},
	})
	require.NoError(t, err)
	require.NoError(t, f.send(t, spender, data))

	assert.Equal(t, big.NewInt(150), f.token.BalanceOf(spender))
	assert.Equal(t, MaxAmount(), f.permit2.Allowance(owner, tokenAddr, spender).Amount, "max allowance is not spent")
}

func TestTransferFromWithoutAllowance(t *testing.T) {
	f := setup(t)

	data, err := PackTransferFrom(owner, spender, big.NewInt(1), tokenAddr)
	require.NoError(t, err)
	err = f.send(t, spender, data)
	assert.True(t, errors.Is(err, revert.ErrInsufficientAllowance))
}

func TestExpiredAllowance(t *testing.T) {
	f := setup(t)

	expiration := uint64(f.clock.Now().Add(time.Minute).Unix())
	data, err := PackApprove(tokenAddr, spender, big.NewInt(500), expiration)
	require.NoError(t, err)
	require.NoError(t, f.send(t, owner, data))

	f.clock.Advance(2 * time.Minute)

	data, err = PackTransferFrom(owner, spender, big.NewInt(1), tokenAddr)
	require.NoError(t, err)
	err = f.send(t, spender, data)
	assert.True(t, errors.Is(err, revert.ErrSignatureExpired))
}

func TestDecodeTransferFrom(t *testing.T) {
	single, err := PackTransferFrom(owner, spender, big.NewInt(7), tokenAddr)
	require.NoError(t, err)
	details, err := DecodeTransferFrom(single)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, owner, details[0].From)
	assert.Equal(t, big.NewInt(7), details[0].Amount)

	batch, err := PackTransferFromBatch([]AllowanceTransferDetails{
		{From: owner, To: spender, Amount: big.NewInt(1), Token: tokenAddr},
		{From: spender, To: owner, Amount: big.NewInt(2), Token: tokenAddr},
	})
	require.NoError(t, err)
	details, err = DecodeTransferFrom(batch)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, spender, details[1].From)

	approve, err := PackApprove(tokenAddr, spender, big.NewInt(1), 0)
	require.NoError(t, err)
	_, err = DecodeTransferFrom(approve)
	assert.True(t, errors.Is(err, revert.ErrInvalidPermit2Data))
	assert.False(t, IsTransferFrom(approve))
	assert.True(t, IsTransferFrom(batch))
}
