// Package chain is an in-process ledger that hosts the router, its agents and
// the token collaborators. It keeps native balances and a registry of
// contracts, and runs one transaction at a time. Every transaction is atomic:
// state changes are journaled and rolled back when any call in the
// transaction fails.
package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxCallDepth bounds nested calls within one transaction.
const MaxCallDepth = 1024

// Contract is code living at an address. Run is invoked for every message sent
// to that address and reads or mutates state only through env.
type Contract interface {
	Run(env *Env) ([]byte, error)
}

// ContractFunc adapts an ordinary function to a Contract.
type ContractFunc func(env *Env) ([]byte, error)

func (f ContractFunc) Run(env *Env) ([]byte, error) {
	return f(env)
}

// Message is a call from one account to another.
type Message struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

type Receipt struct {
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Status      uint64         `json:"status"`
	Logs        []*types.Log   `json:"logs"`
	ReturnData  []byte         `json:"return_data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type State struct {
	// mu serializes transactions; contracts never see concurrent access.
	mu sync.Mutex

	chainID   *big.Int
	clock     Clock
	logger    logger.Logger
	balances  map[common.Address]*big.Int
	contracts map[common.Address]Contract
	nonces    map[common.Address]uint64

	journal []journalEntry
	logs    []*types.Log

	blockNumber uint64
}

type Option func(*State)

func WithClock(c Clock) Option {
	return func(s *State) {
		s.clock = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *State) {
		s.logger = logger.EnsureLogger(l)
	}
}

func New(chainID *big.Int, opts ...Option) *State {
	s := &State{
		chainID:   new(big.Int).Set(chainID),
		clock:     SystemClock(),
		logger:    logger.NewNoOpLogger(),
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]Contract),
		nonces:    make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

func (s *State) BlockNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockNumber
}

// Fund credits native balance outside of any transaction. Used for genesis
// allocations and faucets.
func (s *State) Fund(addr common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = new(big.Int).Add(s.balanceOf(addr), amount)
}

// Deploy registers a contract at addr outside of any transaction.
func (s *State) Deploy(addr common.Address, c Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[addr]; ok {
		return fmt.Errorf("contract already deployed at %s", addr.Hex())
	}
	s.contracts[addr] = c
	return nil
}

func (s *State) BalanceOf(addr common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceOf(addr)
}

func (s *State) HasCode(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contracts[addr]
	return ok
}

// Transact runs fn as one atomic transaction sent by msg.From to msg.To. The
// message value moves before fn runs. When fn fails every change is rolled
// back and no receipt is produced.
func (s *State) Transact(ctx context.Context, msg Message, fn func(env *Env) ([]byte, error)) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.nonces[msg.From]
	s.nonces[msg.From] = nonce + 1
	txHash := computeTxHash(msg.From, nonce)

	env := s.newEnv(msg, msg.From, 0)
	ret, err := s.execute(env, fn)
	if err != nil {
		s.revertToSnapshot(0)
		s.logs = nil
		s.logger.Debug("transaction reverted", "tx", txHash.Hex(), "from", msg.From.Hex(), "to", msg.To.Hex(), "err", err)
		return nil, err
	}

	s.blockNumber++
	logs := s.logs
	for i, l := range logs {
		l.TxHash = txHash
		l.BlockNumber = s.blockNumber
		l.Index = uint(i)
	}
	s.logs = nil
	s.journal = s.journal[:0]

	return &Receipt{
		TxHash:      txHash,
		BlockNumber: s.blockNumber,
		From:        msg.From,
		To:          msg.To,
		Status:      types.ReceiptStatusSuccessful,
		Logs:        logs,
		ReturnData:  ret,
		Timestamp:   s.clock.Now(),
	}, nil
}

// Send delivers msg to the contract at msg.To, or as a plain value transfer
// when there is no contract there.
func (s *State) Send(ctx context.Context, msg Message) (*Receipt, error) {
	return s.Transact(ctx, msg, runContract)
}

// Call executes msg like Send but always discards the resulting state. It is
// the read path used for balance and allowance queries.
func (s *State) Call(ctx context.Context, msg Message) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.newEnv(msg, msg.From, 0)
	ret, err := s.execute(env, runContract)
	s.revertToSnapshot(0)
	s.logs = nil
	return ret, err
}

// View runs fn under the transaction lock and discards any change it makes.
func (s *State) View(fn func(env *Env) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.newEnv(Message{}, common.Address{}, 0)
	err := fn(env)
	s.revertToSnapshot(0)
	s.logs = nil
	return err
}

func (s *State) execute(env *Env, fn func(env *Env) ([]byte, error)) ([]byte, error) {
	if err := s.transfer(env.msg.From, env.msg.To, env.msg.Value); err != nil {
		return nil, err
	}
	return fn(env)
}

func runContract(env *Env) ([]byte, error) {
	c, ok := env.state.contracts[env.msg.To]
	if !ok {
		return nil, nil
	}
	return c.Run(env)
}

func (s *State) newEnv(msg Message, origin common.Address, depth int) *Env {
	if msg.Value == nil {
		msg.Value = new(big.Int)
	}
	return &Env{
		state:  s,
		msg:    msg,
		origin: origin,
		depth:  depth,
	}
}

func (s *State) balanceOf(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (s *State) setBalance(addr common.Address, amount *big.Int) {
	prev, ok := s.balances[addr]
	if !ok {
		prev = nil
	}
	s.journal = append(s.journal, balanceChange{account: addr, prev: prev})
	s.balances[addr] = amount
}

func (s *State) transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount %s", amount)
	}

	fromBalance := s.balanceOf(from)
	if fromBalance.Cmp(amount) < 0 {
		return revert.NewStructuredError(revert.CodeInsufficientBalance, "native balance too low", map[string]interface{}{
			"account": from.Hex(),
			"balance": fromBalance.String(),
			"amount":  amount.String(),
		})
	}
	if from == to {
		return nil
	}

	s.setBalance(from, fromBalance.Sub(fromBalance, amount))
	s.setBalance(to, new(big.Int).Add(s.balanceOf(to), amount))
	return nil
}

func computeTxHash(from common.Address, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(from.Bytes(), n[:])
}
