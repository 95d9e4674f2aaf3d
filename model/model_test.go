package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStorageRoundTrip(t *testing.T) {
	user := common.HexToAddress("0xe0f7D11FD714674722d325Cd86062A5F1882E13a")
	agent := common.HexToAddress("0x0000000000000000000000000000000000000A01")

	exec := NewExecution(user, agent, ExecutionSigned, big.NewInt(1000))
	hash := common.HexToHash("0x01")
	exec.TxHash = &hash
	exec.Status = ExecutionSuccess
	exec.Fees = []Fee{{Token: common.HexToAddress("0xC1"), Amount: "50"}}

	data, err := exec.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"signed"`)

	var loaded Execution
	require.NoError(t, loaded.FromStorageData(data))
	assert.Equal(t, exec.ID, loaded.ID)
	assert.Equal(t, user, loaded.User)
	assert.Equal(t, "1000", loaded.Value)
	assert.Equal(t, hash, *loaded.TxHash)
	assert.True(t, loaded.Succeeded())
}

func TestExecutionIDsAreSorted(t *testing.T) {
	first := GenerateExecutionID()
	second := GenerateExecutionID()
	assert.Len(t, first, 26)
	assert.LessOrEqual(t, first[:10], second[:10], "ids carry their creation time as prefix")
}

func TestFormatAmount(t *testing.T) {
	amount, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)

	assert.Equal(t, "1.5", FormatAmount(amount, 18))
	assert.Equal(t, "0", FormatAmount(nil, 18))
	assert.Equal(t, "0.000001", FormatAmount(big.NewInt(1), 6))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", amount.String())

	amount, err = ParseAmount("0.0000015", 6)
	require.NoError(t, err)
	assert.Equal(t, "1", amount.String())

	_, err = ParseAmount("one", 18)
	assert.Error(t, err)
}

func TestFormatFeeRate(t *testing.T) {
	assert.Equal(t, "0.2%", FormatFeeRate(20))
	assert.Equal(t, "1%", FormatFeeRate(100))
	assert.Equal(t, "0%", FormatFeeRate(0))
}
