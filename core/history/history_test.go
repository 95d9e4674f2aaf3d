package history

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/testutil"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/storage/schema"
)

func newExecution(user common.Address, status model.ExecutionStatus) *model.Execution {
	exec := model.NewExecution(user, common.HexToAddress("0xA0"), model.ExecutionDirect, big.NewInt(0))
	exec.Status = status
	return exec
}

func TestSaveAndListExecutions(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()
	repo := NewRepository(db, testutil.GetLogger())

	var ids []string
	for i := 0; i < 3; i++ {
		exec := newExecution(testutil.TestUser1(), model.ExecutionSuccess)
		require.NoError(t, repo.Save(exec))
		ids = append(ids, exec.ID)
	}
	failed := newExecution(testutil.TestUser2(), model.ExecutionFailed)
	failed.ErrorCode = "InvalidBps"
	require.NoError(t, repo.Save(failed))

	executions, err := repo.List(testutil.TestUser1(), 0)
	require.NoError(t, err)
	require.Len(t, executions, 3)
	assert.Equal(t, ids[2], executions[0].ID, "newest first")
	assert.Equal(t, ids[0], executions[2].ID)

	executions, err = repo.List(testutil.TestUser1(), 2)
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	got, err := repo.Get(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, "InvalidBps", got.ErrorCode)
	assert.Equal(t, testutil.TestUser2(), got.User)

	_, err = repo.Get("01H0000000000000000000MISS")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.Executions)
	assert.Equal(t, uint64(1), stats.Failures)

	stat, err := repo.UserStat(testutil.TestUser2())
	require.NoError(t, err)
	assert.Equal(t, model.AgentStat{Total: 1, Failed: 1}, *stat)
}

func TestSaveAgentOnce(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()
	repo := NewRepository(db, nil)

	rec := &model.AgentRecord{Owner: testutil.TestUser1(), Address: common.HexToAddress("0xA1"), CreatedBy: testutil.TestUser1()}
	created, err := repo.SaveAgent(rec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.SaveAgent(&model.AgentRecord{Owner: testutil.TestUser1(), Address: common.HexToAddress("0xA2")})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetAgent(testutil.TestUser1())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xA1"), got.Address)

	_, err = repo.GetAgent(testutil.TestUser2())
	assert.ErrorIs(t, err, ErrNotFound)

	agents, err := repo.ListAgents()
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Agents)
}

func TestRebuildCounters(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()
	repo := NewRepository(db, nil)

	require.NoError(t, repo.Save(newExecution(testutil.TestUser1(), model.ExecutionSuccess)))
	require.NoError(t, repo.Save(newExecution(testutil.TestUser1(), model.ExecutionFailed)))
	_, err := repo.SaveAgent(&model.AgentRecord{Owner: testutil.TestUser1()})
	require.NoError(t, err)

	// wipe the counters as if written by a node that never kept them
	for _, key := range [][]byte{
		schema.CounterKey(schema.CounterExecutions),
		schema.CounterKey(schema.CounterFailures),
		schema.CounterKey(schema.CounterAgents),
		schema.UserCounterKey(schema.CounterExecutions, testutil.TestUser1()),
		schema.UserCounterKey(schema.CounterFailures, testutil.TestUser1()),
	} {
		require.NoError(t, db.Delete(key))
	}

	written, err := RebuildCounters(db)
	require.NoError(t, err)
	assert.Equal(t, 5, written)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Executions: 2, Failures: 1, Agents: 1}, *stats)

	stat, err := repo.UserStat(testutil.TestUser1())
	require.NoError(t, err)
	assert.Equal(t, model.AgentStat{Total: 2, Success: 1, Failed: 1}, *stat)
}
