package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// journalEntry is a single state modification that can be undone. The
// journal is replayed backwards to roll a transaction or a failed nested call
// back to a snapshot.
type journalEntry interface {
	revert(s *State)
}

type balanceChange struct {
	account common.Address
	prev    *big.Int
}

func (c balanceChange) revert(s *State) {
	if c.prev == nil {
		delete(s.balances, c.account)
		return
	}
	s.balances[c.account] = c.prev
}

type createContractChange struct {
	account common.Address
}

func (c createContractChange) revert(s *State) {
	delete(s.contracts, c.account)
}

type addLogChange struct{}

func (addLogChange) revert(s *State) {
	s.logs = s.logs[:len(s.logs)-1]
}

// customChange lets contracts journal their own storage. The closure restores
// whatever the contract changed.
type customChange struct {
	undo func()
}

func (c customChange) revert(*State) {
	c.undo()
}

func (s *State) snapshot() int {
	return len(s.journal)
}

func (s *State) revertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:id]
}
