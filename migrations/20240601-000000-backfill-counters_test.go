package migrations

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/migrator"
	"github.com/AvaProtocol/ap-router/core/testutil"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/storage/schema"
)

func TestBackfillCounters(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()

	// records written without counters, the way an older node stored them
	for i, status := range []model.ExecutionStatus{model.ExecutionSuccess, model.ExecutionFailed, model.ExecutionSuccess} {
		exec := model.NewExecution(testutil.TestUser1(), common.HexToAddress("0xA1"), model.ExecutionDirect, nil)
		exec.ID = []string{"01H0000000000000000000000A", "01H0000000000000000000000B", "01H0000000000000000000000C"}[i]
		exec.Status = status
		data, err := exec.ToJSON()
		require.NoError(t, err)
		require.NoError(t, db.Set(schema.HistoryKey(exec.User, exec.ID), data))
	}
	agent := &model.AgentRecord{Owner: testutil.TestUser1()}
	data, err := agent.ToJSON()
	require.NoError(t, err)
	require.NoError(t, db.Set(schema.AgentKey(agent.Owner), data))

	m := migrator.NewMigrator(db, nil, Migrations, testutil.GetLogger())
	require.NoError(t, m.Run(context.Background()))

	executions, err := db.GetCounter(schema.CounterKey(schema.CounterExecutions))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), executions)

	failures, err := db.GetCounter(schema.UserCounterKey(schema.CounterFailures, testutil.TestUser1()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), failures)

	agents, err := db.GetCounter(schema.CounterKey(schema.CounterAgents))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), agents)

	marker, err := db.GetKey(schema.MigrationKey("20240601-000000-backfill-counters"))
	require.NoError(t, err)
	assert.Contains(t, string(marker), "records=5")
}
