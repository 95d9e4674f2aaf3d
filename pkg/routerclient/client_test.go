package routerclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/config"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/testutil"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/node"
	"github.com/AvaProtocol/ap-router/pkg/routerclient"
)

func startNode(t *testing.T) *httptest.Server {
	t.Helper()

	c, err := config.Parse([]byte(fmt.Sprintf(`
in_memory: true
backup_interval: 0s
jwt_secret: client-test
chain:
  router_address: "%s"
  wrapped_native_address: "%s"
  permit2_address: "%s"
router:
  owner: "%s"
  fee_collector: "0x00000000000000000000000000000000000000F3"
genesis:
  balances:
    "%s": "100000000000000000000"
`,
		testutil.RouterAddress.Hex(), testutil.WrappedNativeAddress.Hex(), testutil.Permit2Address.Hex(),
		testutil.TestUser2().Hex(), testutil.TestUser1().Hex(),
	)))
	require.NoError(t, err)

	n, err := node.New(c)
	require.NoError(t, err)
	server := httptest.NewServer(n.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = n.Stop()
	})
	return server
}

func TestClientRoundTrip(t *testing.T) {
	server := startNode(t)
	ctx := context.Background()
	user := testutil.TestUser1()

	client := routerclient.New(server.URL)
	info, err := client.RouterInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestUser2(), info.Owner)
	assert.Equal(t, "idle", info.Status)

	_, err = client.History(ctx, user, 0)
	var apiErr *routerclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	key, err := client.Authenticate(ctx, testutil.TestUser1Key(), time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	exec, err := client.Execute(ctx, &model.ExecuteRequest{
		Value:        "500",
		TokensReturn: []string{logic.NativeToken.Hex()},
		Referral:     9,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionSuccess, exec.Status)
	assert.Equal(t, uint16(9), exec.Referral)

	agent, err := client.GetAgent(ctx, user)
	require.NoError(t, err)
	assert.True(t, agent.Created)
	assert.Equal(t, exec.Agent, agent.Agent)

	history, err := client.History(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	fetched, err := client.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, fetched.ID)

	balances, err := client.Balances(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, balances)
	assert.Equal(t, logic.NativeToken, balances[0].Token)
}

func TestClientReportsRevert(t *testing.T) {
	server := startNode(t)
	ctx := context.Background()

	client := routerclient.New(server.URL)
	_, err := client.Authenticate(ctx, testutil.TestUser1Key(), time.Hour)
	require.NoError(t, err)

	_, err = client.Execute(ctx, &model.ExecuteRequest{
		Logics: []model.Logic{{
			To:     testutil.WrappedNativeAddress.Hex(),
			Inputs: []model.Input{{Token: logic.NativeToken.Hex(), BalanceBps: "20000", AmountOrOffset: "0"}},
		}},
	})
	var apiErr *routerclient.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "InvalidBps", apiErr.Code)
	require.NotNil(t, apiErr.Execution)
	assert.Equal(t, model.ExecutionFailed, apiErr.Execution.Status)

	agent, err := client.CreateAgent(ctx, common.Address{})
	require.NoError(t, err)
	assert.True(t, agent.Created)
}
