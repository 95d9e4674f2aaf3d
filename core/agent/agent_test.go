package agent

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/chainio/permit2"
	"github.com/AvaProtocol/ap-router/core/chainio/wrappednative"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/core/testutil"
)

var (
	tokenAddress    = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	protocolAddress = common.HexToAddress("0x00000000000000000000000000000000000000D1")
	spenderAddress  = common.HexToAddress("0x00000000000000000000000000000000000000D2")
	callbackAddress = common.HexToAddress("0x00000000000000000000000000000000000000D3")
	recipient       = common.HexToAddress("0x00000000000000000000000000000000000000E1")

	// The router is a plain account in these tests so it can drive the agent
	// directly.
	routerAddress = testutil.RouterAddress
)

type fixture struct {
	*testutil.Chain
	user     common.Address
	addr     common.Address
	agent    *Agent
	token    *erc20.Token
	protocol *testutil.Fallback
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := testutil.NewChain(t)
	f := &fixture{
		Chain:    c,
		user:     testutil.TestUser1(),
		token:    c.DeployToken(t, tokenAddress, "TKA"),
		protocol: &testutil.Fallback{},
	}
	require.NoError(t, c.State.Deploy(protocolAddress, f.protocol))

	f.addr = DeriveAddress(routerAddress, f.user, DefaultImplementationHash)
	f.agent = New(Config{
		User:          f.user,
		WrappedNative: testutil.WrappedNativeAddress,
		Permit2:       testutil.Permit2Address,
		Logger:        testutil.GetLogger(),
	})
	require.NoError(t, c.State.Deploy(f.addr, f.agent))

	initialize, err := PackInitialize()
	require.NoError(t, err)
	c.MustSend(t, routerAddress, f.addr, nil, initialize)

	c.State.Fund(routerAddress, testutil.Ether(100))
	return f
}

func (f *fixture) execute(value *big.Int, permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address) error {
	data, err := PackExecute(permit2Datas, logics, tokensReturn)
	if err != nil {
		return err
	}
	_, err = f.Send(routerAddress, f.addr, value, data)
	return err
}

func code(err error) revert.ErrorCode {
	return revert.GetErrorCode(err)
}

func TestInitializeBindsRouterOnce(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, routerAddress, f.agent.Router())
	assert.Equal(t, f.user, f.agent.User())

	initialize, err := PackInitialize()
	require.NoError(t, err)

	_, err = f.Send(routerAddress, f.addr, nil, initialize)
	assert.Equal(t, revert.CodeAlreadyInitialized, code(err), "a second initialize must fail")

	_, err = f.Send(testutil.TestUser2(), f.addr, nil, initialize)
	assert.Equal(t, revert.CodeAlreadyInitialized, code(err))
	assert.Equal(t, routerAddress, f.agent.Router(), "router binding must not change")
}

func TestExecuteOnlyFromRouter(t *testing.T) {
	f := newFixture(t)

	data, err := PackExecute(nil, nil, nil)
	require.NoError(t, err)

	_, err = f.Send(f.user, f.addr, nil, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, revert.ErrUnauthorized, "even the owning user cannot call the agent directly")
}

func TestWrapBeforeFixedAmounts(t *testing.T) {
	f := newFixture(t)

	err := f.execute(big.NewInt(2), nil, []logic.Logic{{
		To:       protocolAddress,
		WrapMode: logic.WrapModeWrapBefore,
		Inputs: []logic.Input{
			logic.FixedInput(testutil.WrappedNativeAddress, big.NewInt(1)),
			logic.FixedInput(testutil.WrappedNativeAddress, big.NewInt(1)),
		},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "2", f.WrappedNative.BalanceOf(f.addr).String(), "both inputs are wrapped")
	assert.Equal(t, "0", f.State.BalanceOf(f.addr).String())
	assert.Equal(t, "0", f.protocol.Last().Value.String(), "wrapped inputs are not sent as value")
	assert.Equal(t, math.MaxBig256.String(), f.WrappedNative.Allowance(f.addr, protocolAddress).String())
}

func TestWrapBeforeShares(t *testing.T) {
	f := newFixture(t)

	err := f.execute(big.NewInt(100000), nil, []logic.Logic{{
		To:       protocolAddress,
		WrapMode: logic.WrapModeWrapBefore,
		Inputs: []logic.Input{
			logic.ShareInput(testutil.WrappedNativeAddress, 10),
			logic.ShareInput(testutil.WrappedNativeAddress, 9990),
		},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "100000", f.WrappedNative.BalanceOf(f.addr).String(), "10 + 9990 bps covers the full native balance")
	assert.Equal(t, "0", f.State.BalanceOf(f.addr).String())
}

func TestUnwrapAfterLeavesPriorBalance(t *testing.T) {
	f := newFixture(t)
	f.WrappedNative.SetBalance(f.addr, big.NewInt(1000))

	deposit, err := wrappednative.PackDeposit()
	require.NoError(t, err)

	err = f.execute(big.NewInt(100000), nil, []logic.Logic{{
		To:       testutil.WrappedNativeAddress,
		Data:     deposit,
		WrapMode: logic.WrapModeUnwrapAfter,
		Inputs:   []logic.Input{logic.FixedInput(logic.NativeToken, big.NewInt(100000))},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "100000", f.State.BalanceOf(f.addr).String(), "the deposited amount is unwrapped again")
	assert.Equal(t, "1000", f.WrappedNative.BalanceOf(f.addr).String(), "wrapped balance held before the call is untouched")
}

func TestSendNativeShare(t *testing.T) {
	f := newFixture(t)

	err := f.execute(big.NewInt(100000), nil, []logic.Logic{{
		To:     recipient,
		Inputs: []logic.Input{logic.ShareInput(logic.NativeToken, 10)},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "100", f.State.BalanceOf(recipient).String())
	assert.Equal(t, "99900", f.State.BalanceOf(f.addr).String())
}

func TestApproveDefaultsToCallTarget(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(10))

	err := f.execute(nil, nil, []logic.Logic{{
		To:     protocolAddress,
		Inputs: []logic.Input{logic.FixedInput(tokenAddress, big.NewInt(10))},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, math.MaxBig256.String(), f.token.Allowance(f.addr, protocolAddress).String())
}

func TestApproveExplicitSpender(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(10))

	err := f.execute(nil, nil, []logic.Logic{{
		To:        protocolAddress,
		ApproveTo: spenderAddress,
		Inputs:    []logic.Input{logic.FixedInput(tokenAddress, big.NewInt(10))},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, math.MaxBig256.String(), f.token.Allowance(f.addr, spenderAddress).String())
	assert.Equal(t, "0", f.token.Allowance(f.addr, protocolAddress).String(), "the call target gets nothing when approveTo is set")
}

func TestApproveSkippedWhenAllowanceCovers(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(10))

	logics := []logic.Logic{{
		To:     protocolAddress,
		Inputs: []logic.Input{logic.FixedInput(tokenAddress, big.NewInt(10))},
	}}
	require.NoError(t, f.execute(nil, nil, logics, nil))

	receipt, err := f.Send(routerAddress, f.addr, nil, mustPackExecute(t, logics))
	require.NoError(t, err)
	for _, l := range receipt.Logs {
		assert.NotEqual(t, tokenAddress, l.Address, "no second approval is emitted")
	}
}

func mustPackExecute(t *testing.T, logics []logic.Logic) []byte {
	data, err := PackExecute(nil, logics, nil)
	require.NoError(t, err)
	return data
}

func TestAmountWrittenAtOffset(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(1000))

	data, err := erc20.PackTransfer(recipient, big.NewInt(0))
	require.NoError(t, err)

	err = f.execute(nil, nil, []logic.Logic{{
		To:     protocolAddress,
		Data:   data,
		Inputs: []logic.Input{logic.NewInput(tokenAddress, 5000, big.NewInt(32))},
	}}, nil)
	require.NoError(t, err)

	expected, err := erc20.PackTransfer(recipient, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, expected, f.protocol.Last().Data, "the second argument holds half the balance")
}

func TestInvalidOffset(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(1000))

	data, err := erc20.PackTransfer(recipient, big.NewInt(0))
	require.NoError(t, err)

	err = f.execute(nil, nil, []logic.Logic{{
		To:     protocolAddress,
		Data:   data,
		Inputs: []logic.Input{logic.NewInput(tokenAddress, 5000, big.NewInt(64))},
	}}, nil)
	assert.Equal(t, revert.CodeInvalidOffset, code(err))
}

func TestInvalidBps(t *testing.T) {
	f := newFixture(t)

	err := f.execute(nil, nil, []logic.Logic{{
		To:     protocolAddress,
		Inputs: []logic.Input{logic.ShareInput(tokenAddress, logic.BPSBase+1)},
	}}, nil)
	assert.Equal(t, revert.CodeInvalidBps, code(err))
	assert.Empty(t, f.protocol.Calls)
}

func TestUnresolvedCallback(t *testing.T) {
	f := newFixture(t)

	err := f.execute(nil, nil, []logic.Logic{{
		To:       protocolAddress,
		Callback: protocolAddress,
	}}, nil)
	assert.Equal(t, revert.CodeUnresolvedCallback, code(err))
	assert.False(t, f.agent.CallbackArmed(), "the marker is rolled back with the transaction")
}

func TestCallbackRunsNestedLogics(t *testing.T) {
	f := newFixture(t)

	nested, err := PackExecuteByCallback([]logic.Logic{{To: protocolAddress}})
	require.NoError(t, err)
	require.NoError(t, f.State.Deploy(callbackAddress, &testutil.Callback{Data: nested}))

	err = f.execute(nil, nil, []logic.Logic{{
		To:       callbackAddress,
		Callback: callbackAddress,
	}}, nil)
	require.NoError(t, err)

	require.Len(t, f.protocol.Calls, 1, "the nested logic ran")
	assert.Equal(t, f.addr, f.protocol.Last().Caller)
	assert.False(t, f.agent.CallbackArmed())
}

func TestCallbackFromWrongCaller(t *testing.T) {
	f := newFixture(t)

	nested, err := PackExecuteByCallback(nil)
	require.NoError(t, err)
	require.NoError(t, f.State.Deploy(callbackAddress, &testutil.Callback{Data: nested}))

	err = f.execute(nil, nil, []logic.Logic{{
		To:       callbackAddress,
		Callback: protocolAddress,
	}}, nil)
	assert.ErrorIs(t, err, revert.ErrUnauthorized, "only the armed callback may re-enter")

	_, err = f.Send(f.user, f.addr, nil, nested)
	assert.ErrorIs(t, err, revert.ErrUnauthorized, "nothing is armed outside a logic")
}

func TestCallbackIsOneShot(t *testing.T) {
	f := newFixture(t)

	nested, err := PackExecuteByCallback([]logic.Logic{{To: protocolAddress}})
	require.NoError(t, err)
	require.NoError(t, f.State.Deploy(callbackAddress, &testutil.Callback{Data: nested, Times: 2}))

	err = f.execute(nil, nil, []logic.Logic{{
		To:       callbackAddress,
		Callback: callbackAddress,
	}}, nil)
	assert.ErrorIs(t, err, revert.ErrUnauthorized, "the second re-entry finds nothing armed")
	assert.Empty(t, f.protocol.Calls, "the whole batch is rolled back")
	assert.False(t, f.agent.CallbackArmed())
}

func TestCallToNonContract(t *testing.T) {
	f := newFixture(t)

	err := f.execute(nil, nil, []logic.Logic{{
		To:   recipient,
		Data: []byte{0x01, 0x02, 0x03, 0x04},
	}}, nil)
	assert.Equal(t, revert.CodeCallToNonContract, code(err))
}

func TestLogicCannotTargetPermit2(t *testing.T) {
	f := newFixture(t)

	data, err := permit2.PackTransferFrom(f.user, f.addr, big.NewInt(1), tokenAddress)
	require.NoError(t, err)

	err = f.execute(nil, nil, []logic.Logic{{To: testutil.Permit2Address, Data: data}}, nil)
	assert.Equal(t, revert.CodeInvalidPermit2Data, code(err))
}

func approvePermit2(t *testing.T, f *fixture, amount *big.Int) {
	t.Helper()
	f.token.SetBalance(f.user, big.NewInt(1000))

	approve, err := erc20.PackApprove(testutil.Permit2Address, math.MaxBig256)
	require.NoError(t, err)
	f.MustSend(t, f.user, tokenAddress, nil, approve)

	grant, err := permit2.PackApprove(tokenAddress, f.addr, amount, 0)
	require.NoError(t, err)
	f.MustSend(t, f.user, testutil.Permit2Address, nil, grant)
}

func TestPermit2Pull(t *testing.T) {
	f := newFixture(t)
	approvePermit2(t, f, big.NewInt(300))

	single, err := permit2.PackTransferFrom(f.user, f.addr, big.NewInt(100), tokenAddress)
	require.NoError(t, err)
	batch, err := permit2.PackTransferFromBatch([]permit2.AllowanceTransferDetails{
		{From: f.user, To: f.addr, Amount: big.NewInt(50), Token: tokenAddress},
		{From: f.user, To: f.addr, Amount: big.NewInt(50), Token: tokenAddress},
	})
	require.NoError(t, err)

	require.NoError(t, f.execute(nil, [][]byte{single, batch}, nil, nil))

	assert.Equal(t, "200", f.token.BalanceOf(f.addr).String())
	assert.Equal(t, "800", f.token.BalanceOf(f.user).String())
	assert.Equal(t, "100", f.Permit2.Allowance(f.user, tokenAddress, f.addr).Amount.String())
}

func TestPermit2RejectsForeignOwner(t *testing.T) {
	f := newFixture(t)
	approvePermit2(t, f, big.NewInt(300))

	data, err := permit2.PackTransferFrom(testutil.TestUser2(), f.addr, big.NewInt(100), tokenAddress)
	require.NoError(t, err)

	err = f.execute(nil, [][]byte{data}, nil, nil)
	assert.Equal(t, revert.CodeInvalidPermit2Data, code(err))
}

func TestPermit2RejectsOtherCalls(t *testing.T) {
	f := newFixture(t)

	data, err := permit2.PackApprove(tokenAddress, f.addr, big.NewInt(1), 0)
	require.NoError(t, err)

	err = f.execute(nil, [][]byte{data}, nil, nil)
	assert.Equal(t, revert.CodeInvalidPermit2Data, code(err))
}

func TestTokensReturnedToRouter(t *testing.T) {
	f := newFixture(t)
	f.token.SetBalance(f.addr, big.NewInt(700))
	routerBefore := f.State.BalanceOf(routerAddress)

	err := f.execute(big.NewInt(50), nil, nil, []common.Address{tokenAddress, logic.NativeToken})
	require.NoError(t, err)

	assert.Equal(t, "700", f.token.BalanceOf(routerAddress).String())
	assert.Equal(t, "0", f.token.BalanceOf(f.addr).String())
	assert.Equal(t, routerBefore.String(), f.State.BalanceOf(routerAddress).String(), "the native value comes back")
	assert.Equal(t, "0", f.State.BalanceOf(f.addr).String())
}

func TestFailedLogicRevertsBatch(t *testing.T) {
	f := newFixture(t)
	f.protocol.Err = revert.Errorf(revert.CodeExecutionReverted, "protocol failed")

	err := f.execute(big.NewInt(100), nil, []logic.Logic{
		{
			To:       testutil.WrappedNativeAddress,
			Data:     mustDeposit(t),
			WrapMode: logic.WrapModeNone,
			Inputs:   []logic.Input{logic.FixedInput(logic.NativeToken, big.NewInt(100))},
		},
		{To: protocolAddress},
	}, nil)
	assert.Equal(t, revert.CodeExecutionReverted, code(err))

	assert.Equal(t, "0", f.WrappedNative.BalanceOf(f.addr).String(), "the first logic is rolled back")
	assert.Equal(t, "0", f.State.BalanceOf(f.addr).String())
}

func mustDeposit(t *testing.T) []byte {
	data, err := wrappednative.PackDeposit()
	require.NoError(t, err)
	return data
}

func TestDeriveAddressIsStable(t *testing.T) {
	a := DeriveAddress(routerAddress, testutil.TestUser1(), DefaultImplementationHash)
	b := DeriveAddress(routerAddress, testutil.TestUser1(), DefaultImplementationHash)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, DeriveAddress(routerAddress, testutil.TestUser2(), DefaultImplementationHash), "users get distinct agents")
	assert.NotEqual(t, a, DeriveAddress(protocolAddress, testutil.TestUser1(), DefaultImplementationHash), "routers get distinct agents")
	assert.NotEqual(t, a, DeriveAddress(routerAddress, testutil.TestUser1(), common.Hash{1}), "implementation hash moves the address")
}
