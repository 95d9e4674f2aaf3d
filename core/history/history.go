// Package history persists the agents and executions the node observes on
// the router into badger.
package history

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/AvaProtocol/ap-router/storage"
	"github.com/AvaProtocol/ap-router/storage/schema"
)

var ErrNotFound = errors.New("not found")

const DefaultPageSize = 50

type Stats struct {
	Executions uint64 `json:"executions"`
	Failures   uint64 `json:"failures"`
	Agents     uint64 `json:"agents"`
}

type Repository struct {
	db     storage.Storage
	logger logger.Logger
}

func NewRepository(db storage.Storage, log logger.Logger) *Repository {
	return &Repository{db: db, logger: logger.EnsureLogger(log)}
}

// SaveAgent indexes an agent. It reports false when the owner was already
// known, which leaves the stored record untouched.
func (r *Repository) SaveAgent(rec *model.AgentRecord) (bool, error) {
	key := schema.AgentKey(rec.Owner)
	exists, err := r.db.Exist(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	data, err := rec.ToJSON()
	if err != nil {
		return false, err
	}
	if err := r.db.Set(key, data); err != nil {
		return false, fmt.Errorf("save agent %s: %w", rec.Owner.Hex(), err)
	}
	if _, err := r.db.IncCounter(schema.CounterKey(schema.CounterAgents)); err != nil {
		return true, err
	}
	return true, nil
}

func (r *Repository) GetAgent(owner common.Address) (*model.AgentRecord, error) {
	data, err := r.db.GetKey(schema.AgentKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := &model.AgentRecord{}
	if err := rec.FromStorageData(data); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) ListAgents() ([]*model.AgentRecord, error) {
	items, err := r.db.GetByPrefix([]byte(schema.AgentPrefix))
	if err != nil {
		return nil, err
	}

	records := make([]*model.AgentRecord, 0, len(items))
	for _, item := range items {
		rec := &model.AgentRecord{}
		if err := rec.FromStorageData(item.Value); err != nil {
			r.logger.Warn("skip corrupted agent record", "key", string(item.Key), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save stores an execution under its user and bumps the counters.
func (r *Repository) Save(exec *model.Execution) error {
	if exec.ID == "" {
		exec.ID = model.GenerateExecutionID()
	}
	data, err := exec.ToJSON()
	if err != nil {
		return err
	}

	if err := r.db.BatchWrite(map[string][]byte{
		string(schema.HistoryKey(exec.User, exec.ID)): data,
		string(schema.ExecutionKey(exec.ID)):          []byte(exec.User.Hex()),
	}); err != nil {
		return fmt.Errorf("save execution %s: %w", exec.ID, err)
	}

	counters := [][]byte{
		schema.CounterKey(schema.CounterExecutions),
		schema.UserCounterKey(schema.CounterExecutions, exec.User),
	}
	if !exec.Succeeded() {
		counters = append(counters,
			schema.CounterKey(schema.CounterFailures),
			schema.UserCounterKey(schema.CounterFailures, exec.User))
	}
	for _, key := range counters {
		if _, err := r.db.IncCounter(key); err != nil {
			return fmt.Errorf("bump counter %s: %w", key, err)
		}
	}

	r.logger.Debug("execution saved", "id", exec.ID, "user", exec.User.Hex(), "status", exec.Status)
	return nil
}

func (r *Repository) Get(id string) (*model.Execution, error) {
	owner, err := r.db.GetKey(schema.ExecutionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data, err := r.db.GetKey(schema.HistoryKey(common.HexToAddress(string(owner)), id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	exec := &model.Execution{}
	if err := exec.FromStorageData(data); err != nil {
		return nil, err
	}
	return exec, nil
}

// List returns the newest executions of user first. A limit of zero uses
// DefaultPageSize.
func (r *Repository) List(user common.Address, limit int) ([]*model.Execution, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	items, err := r.db.GetByPrefixReverse(schema.HistoryPrefixForUser(user), limit)
	if err != nil {
		return nil, err
	}

	executions := make([]*model.Execution, 0, len(items))
	for _, item := range items {
		exec := &model.Execution{}
		if err := exec.FromStorageData(item.Value); err != nil {
			r.logger.Warn("skip corrupted execution", "key", string(item.Key), "error", err)
			continue
		}
		executions = append(executions, exec)
	}
	return executions, nil
}

func (r *Repository) Stats() (*Stats, error) {
	stats := &Stats{}
	var err error
	if stats.Executions, err = r.db.GetCounter(schema.CounterKey(schema.CounterExecutions), 0); err != nil {
		return nil, err
	}
	if stats.Failures, err = r.db.GetCounter(schema.CounterKey(schema.CounterFailures), 0); err != nil {
		return nil, err
	}
	if stats.Agents, err = r.db.GetCounter(schema.CounterKey(schema.CounterAgents), 0); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Repository) UserStat(user common.Address) (*model.AgentStat, error) {
	total, err := r.db.GetCounter(schema.UserCounterKey(schema.CounterExecutions, user), 0)
	if err != nil {
		return nil, err
	}
	failed, err := r.db.GetCounter(schema.UserCounterKey(schema.CounterFailures, user), 0)
	if err != nil {
		return nil, err
	}
	return &model.AgentStat{Total: total, Failed: failed, Success: total - failed}, nil
}

// RebuildCounters recomputes every counter from the stored records and
// returns how many counters it wrote.
func RebuildCounters(db storage.Storage) (int, error) {
	agents, err := db.CountKeysByPrefix([]byte(schema.AgentPrefix))
	if err != nil {
		return 0, err
	}

	items, err := db.GetByPrefix([]byte(schema.HistoryPrefix))
	if err != nil {
		return 0, err
	}

	var executions, failures uint64
	perUser := map[common.Address]*model.AgentStat{}
	for _, item := range items {
		user, _, err := schema.ParseHistoryKey(item.Key)
		if err != nil {
			continue
		}
		exec := &model.Execution{}
		if err := exec.FromStorageData(item.Value); err != nil {
			continue
		}

		stat, ok := perUser[user]
		if !ok {
			stat = &model.AgentStat{}
			perUser[user] = stat
		}
		executions++
		stat.Total++
		if !exec.Succeeded() {
			failures++
			stat.Failed++
		}
	}

	format := func(v uint64) []byte { return []byte(strconv.FormatUint(v, 10)) }
	updates := map[string][]byte{
		string(schema.CounterKey(schema.CounterAgents)):     format(uint64(agents)),
		string(schema.CounterKey(schema.CounterExecutions)): format(executions),
		string(schema.CounterKey(schema.CounterFailures)):   format(failures),
	}
	for user, stat := range perUser {
		updates[string(schema.UserCounterKey(schema.CounterExecutions, user))] = format(stat.Total)
		updates[string(schema.UserCounterKey(schema.CounterFailures, user))] = format(stat.Failed)
	}

	if err := db.BatchWrite(updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}
