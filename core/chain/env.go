package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Env is the execution frame handed to a contract. It exposes the current
// message and the state operations a contract is allowed to perform. An Env is
// only valid while the transaction that created it holds the state lock.
type Env struct {
	state  *State
	msg    Message
	origin common.Address
	depth  int
}

// Caller is the immediate sender of the current message.
func (e *Env) Caller() common.Address {
	return e.msg.From
}

// Self is the address the current message was sent to.
func (e *Env) Self() common.Address {
	return e.msg.To
}

// Origin is the externally owned account that started the transaction.
func (e *Env) Origin() common.Address {
	return e.origin
}

func (e *Env) Value() *big.Int {
	return new(big.Int).Set(e.msg.Value)
}

func (e *Env) Data() []byte {
	return e.msg.Data
}

func (e *Env) Depth() int {
	return e.depth
}

func (e *Env) Now() time.Time {
	return e.state.clock.Now()
}

func (e *Env) ChainID() *big.Int {
	return e.state.ChainID()
}

func (e *Env) BalanceOf(addr common.Address) *big.Int {
	return e.state.balanceOf(addr)
}

func (e *Env) HasCode(addr common.Address) bool {
	_, ok := e.state.contracts[addr]
	return ok
}

// Contract returns the contract deployed at addr so that Go callers can use
// its typed API inside the same transaction.
func (e *Env) Contract(addr common.Address) (Contract, bool) {
	c, ok := e.state.contracts[addr]
	return c, ok
}

// Call sends a nested message from the current contract. Changes made by the
// callee are reverted when it fails, and the error is returned to the caller
// which usually propagates it.
func (e *Env) Call(to common.Address, value *big.Int, data []byte) ([]byte, error) {
	if e.depth+1 > MaxCallDepth {
		return nil, revert.Errorf(revert.CodeExecutionReverted, "max call depth %d exceeded", MaxCallDepth)
	}

	snap := e.state.snapshot()
	logCount := len(e.state.logs)

	child := e.state.newEnv(Message{
		From:  e.msg.To,
		To:    to,
		Value: value,
		Data:  data,
	}, e.origin, e.depth+1)

	ret, err := e.state.execute(child, runContract)
	if err != nil {
		e.state.revertToSnapshot(snap)
		e.state.logs = e.state.logs[:logCount]
		return nil, err
	}
	return ret, nil
}

// Transfer moves native balance out of the current contract without invoking
// any code at the destination.
func (e *Env) Transfer(to common.Address, amount *big.Int) error {
	return e.state.transfer(e.msg.To, to, amount)
}

// Deploy creates a contract at addr as part of the current transaction.
func (e *Env) Deploy(addr common.Address, c Contract) error {
	if _, ok := e.state.contracts[addr]; ok {
		return fmt.Errorf("contract already deployed at %s", addr.Hex())
	}
	e.state.contracts[addr] = c
	e.state.journal = append(e.state.journal, createContractChange{account: addr})
	return nil
}

// Journal records an undo closure for a storage change made by the current
// contract. The closure runs if the enclosing call or transaction reverts.
func (e *Env) Journal(undo func()) {
	e.state.journal = append(e.state.journal, customChange{undo: undo})
}

// EmitEvent appends a log from the current contract. Indexed arguments become
// topics, the rest are ABI encoded into the log data.
func (e *Env) EmitEvent(event abi.Event, args ...interface{}) error {
	if len(args) != len(event.Inputs) {
		return fmt.Errorf("event %s: expected %d args, got %d", event.Name, len(event.Inputs), len(args))
	}

	topics := []common.Hash{event.ID}
	var nonIndexed []interface{}
	for i, input := range event.Inputs {
		if !input.Indexed {
			nonIndexed = append(nonIndexed, args[i])
			continue
		}
		topic, err := topicFor(args[i])
		if err != nil {
			return fmt.Errorf("event %s: %w", event.Name, err)
		}
		topics = append(topics, topic)
	}

	data, err := event.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		return fmt.Errorf("event %s: %w", event.Name, err)
	}

	e.state.logs = append(e.state.logs, &types.Log{
		Address: e.msg.To,
		Topics:  topics,
		Data:    data,
	})
	e.state.journal = append(e.state.journal, addLogChange{})
	return nil
}

func topicFor(v interface{}) (common.Hash, error) {
	switch t := v.(type) {
	case common.Address:
		return common.BytesToHash(t.Bytes()), nil
	case common.Hash:
		return t, nil
	case [32]byte:
		return common.Hash(t), nil
	case *big.Int:
		return common.BigToHash(t), nil
	case uint64:
		return common.BigToHash(new(big.Int).SetUint64(t)), nil
	case bool:
		if t {
			return common.BigToHash(big.NewInt(1)), nil
		}
		return common.Hash{}, nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed type %T", v)
	}
}
