package logic

import (
	"errors"
	"math/big"
	"testing"

	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockToken = common.HexToAddress("0x00000000000000000000000000000000000070c0")

func TestResolveAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		balance int64
		want    int64
	}{
		{"fixed amount", FixedInput(mockToken, big.NewInt(42)), 1000, 42},
		{"fixed amount above balance is kept", FixedInput(mockToken, big.NewInt(5000)), 1000, 5000},
		{"ten bps", ShareInput(mockToken, 10), 100000, 100},
		{"remaining bps", ShareInput(mockToken, BPSBase-10), 100000, 99900},
		{"full balance", ShareInput(mockToken, BPSBase), 777, 777},
		{"truncates", ShareInput(mockToken, 3333), 10, 3},
		{"offset sentinel without bps resolves to zero", ShareInput(mockToken, 0), 500, 0},
		{"bps with offset still uses balance", NewInput(mockToken, 5000, big.NewInt(0)), 80, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAmount(tt.input, big.NewInt(tt.balance))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestResolveAmountInvalidBps(t *testing.T) {
	inputs := []Input{
		ShareInput(mockToken, BPSBase+1),
		NewInput(mockToken, BPSBase+1, big.NewInt(0)),
		NewInput(common.Address{}, BPSBase+1, big.NewInt(1)),
	}
	for _, in := range inputs {
		_, err := ResolveAmount(in, big.NewInt(1000))
		assert.True(t, errors.Is(err, revert.ErrInvalidBps), "bps above 10000 must fail regardless of other fields")
	}
}

func TestShareOfBalancePartitions(t *testing.T) {
	balance := big.NewInt(100000)
	a, err := ResolveAmount(ShareInput(mockToken, 10), balance)
	require.NoError(t, err)
	b, err := ResolveAmount(ShareInput(mockToken, BPSBase-10), balance)
	require.NoError(t, err)
	assert.Equal(t, balance.Int64(), new(big.Int).Add(a, b).Int64())
}

func TestReplaceAmount(t *testing.T) {
	data := make([]byte, 4+64)
	copy(data, []byte{0xde, 0xad, 0xbe, 0xef})

	out, err := ReplaceAmount(data, big.NewInt(32), big.NewInt(0x1234))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out[:4])
	assert.Equal(t, common.LeftPadBytes([]byte{0x12, 0x34}, 32), out[36:68])
	assert.Equal(t, make([]byte, 32), out[4:36], "other words are untouched")
	assert.Equal(t, make([]byte, 64), data[4:], "input data is not modified")

	_, err = ReplaceAmount(data, big.NewInt(33), big.NewInt(1))
	assert.True(t, errors.Is(err, revert.ErrInvalidOffset))

	_, err = ReplaceAmount([]byte{0x01}, big.NewInt(0), big.NewInt(1))
	assert.True(t, errors.Is(err, revert.ErrInvalidOffset))

	_, err = ReplaceAmount(data, OffsetNotUsed, big.NewInt(1))
	assert.True(t, errors.Is(err, revert.ErrInvalidOffset))
}

func TestInputModes(t *testing.T) {
	assert.False(t, FixedInput(mockToken, big.NewInt(1)).IsShare())
	assert.True(t, ShareInput(mockToken, 1).IsShare())
	assert.False(t, ShareInput(mockToken, 1).HasOffset())
	assert.True(t, NewInput(mockToken, 1, big.NewInt(4)).HasOffset())

	l := Logic{To: mockToken}
	assert.Equal(t, mockToken, l.ApproveTarget())
	l.ApproveTo = common.HexToAddress("0x01")
	assert.Equal(t, common.HexToAddress("0x01"), l.ApproveTarget())
}
