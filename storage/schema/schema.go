// Package schema builds the keys the node stores in badger.
//
//	agent:<user>                     agent record of a user
//	history:<user>:<execution id>    execution record, ulid ordered per user
//	execution:<execution id>         owning user of an execution, for lookups by id
//	ct:<name>                        counters
//	migration:<name>                 applied migration marker
package schema

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	AgentPrefix     = "agent:"
	HistoryPrefix   = "history:"
	ExecutionPrefix = "execution:"
	CounterPrefix   = "ct:"
	MigrationPrefix = "migration:"
)

// Counter names
const (
	CounterExecutions = "executions"
	CounterFailures   = "failures"
	CounterAgents     = "agents"
)

func addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func AgentKey(user common.Address) []byte {
	return []byte(AgentPrefix + addr(user))
}

func HistoryKey(user common.Address, executionID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", HistoryPrefix, addr(user), executionID))
}

func HistoryPrefixForUser(user common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", HistoryPrefix, addr(user)))
}

func ExecutionKey(executionID string) []byte {
	return []byte(ExecutionPrefix + executionID)
}

func CounterKey(name string) []byte {
	return []byte(CounterPrefix + name)
}

// UserCounterKey scopes a counter to one user.
func UserCounterKey(name string, user common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", CounterPrefix, name, addr(user)))
}

func MigrationKey(name string) []byte {
	return []byte(MigrationPrefix + name)
}

// ParseHistoryKey splits a history key into its user and execution id.
func ParseHistoryKey(key []byte) (common.Address, string, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 3 || parts[0]+":" != HistoryPrefix || !common.IsHexAddress(parts[1]) {
		return common.Address{}, "", fmt.Errorf("malformed history key %q", key)
	}
	return common.HexToAddress(parts[1]), parts[2], nil
}
