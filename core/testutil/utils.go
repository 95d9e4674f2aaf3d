package testutil

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/chainio/permit2"
	"github.com/AvaProtocol/ap-router/core/chainio/wrappednative"
	"github.com/AvaProtocol/ap-router/storage"
)

const TestChainID = 31337

var (
	WrappedNativeAddress = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	Permit2Address       = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	RouterAddress        = common.HexToAddress("0x00000000000000000000000000000000000000B1")

	// Genesis time of every test chain.
	GenesisTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

// Well known development keys. Never fund them outside of tests.
const (
	user1Key  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	user2Key  = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	signerKey = "5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
)

// Shortcut to initialize a storage at the given path, panic if we cannot create db
func TestMustDB() storage.Storage {
	dir, err := os.MkdirTemp("", "aprouter")
	if err != nil {
		panic(err)
	}

	db, err := storage.NewWithPath(dir)
	if err != nil {
		panic(err)
	}
	return db
}

func GetLogger() sdklogging.Logger {
	logger, err := sdklogging.NewZapLogger("development")
	if err != nil {
		panic(err)
	}
	return logger
}

func mustKey(hex string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		panic(err)
	}
	return key
}

func TestUser1Key() *ecdsa.PrivateKey  { return mustKey(user1Key) }
func TestUser2Key() *ecdsa.PrivateKey  { return mustKey(user2Key) }
func TestSignerKey() *ecdsa.PrivateKey { return mustKey(signerKey) }

func TestUser1() common.Address { return crypto.PubkeyToAddress(TestUser1Key().PublicKey) }
func TestUser2() common.Address { return crypto.PubkeyToAddress(TestUser2Key().PublicKey) }
func TestSigner() common.Address {
	return crypto.PubkeyToAddress(TestSignerKey().PublicKey)
}

// Ether returns n whole units of an 18 decimals asset.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// Chain is a fresh ledger with the wrapped native token and permit2 deployed
// at their well known addresses, and a manual clock set to GenesisTime.
type Chain struct {
	State         *chain.State
	Clock         *chain.ManualClock
	WrappedNative *wrappednative.WrappedNative
	Permit2       *permit2.Permit2
}

func NewChain(t testing.TB) *Chain {
	t.Helper()

	clock := chain.NewManualClock(GenesisTime)
	state := chain.New(big.NewInt(TestChainID), chain.WithClock(clock))

	weth := wrappednative.New("Wrapped Ether", "WETH")
	require.NoError(t, state.Deploy(WrappedNativeAddress, weth))

	registry := permit2.New()
	require.NoError(t, state.Deploy(Permit2Address, registry))

	return &Chain{State: state, Clock: clock, WrappedNative: weth, Permit2: registry}
}

// DeployToken deploys an open-mint 18 decimals token at addr.
func (c *Chain) DeployToken(t testing.TB, addr common.Address, symbol string) *erc20.Token {
	t.Helper()
	token := erc20.NewToken(symbol, symbol, 18, common.Address{})
	require.NoError(t, c.State.Deploy(addr, token))
	return token
}

// Send is State.Send with a background context.
func (c *Chain) Send(from, to common.Address, value *big.Int, data []byte) (*chain.Receipt, error) {
	return c.State.Send(context.Background(), chain.Message{From: from, To: to, Value: value, Data: data})
}

// MustSend fails the test when the transaction reverts.
func (c *Chain) MustSend(t testing.TB, from, to common.Address, value *big.Int, data []byte) *chain.Receipt {
	t.Helper()
	receipt, err := c.Send(from, to, value, data)
	require.NoError(t, err)
	return receipt
}

// Call records every message it receives and accepts any value.
type Call struct {
	Caller common.Address
	Value  *big.Int
	Data   []byte
}

type Fallback struct {
	Calls []Call
	// Err, when set, makes every call revert with it.
	Err error
}

func (f *Fallback) Run(env *chain.Env) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Calls = append(f.Calls, Call{Caller: env.Caller(), Value: env.Value(), Data: env.Data()})
	n := len(f.Calls)
	env.Journal(func() { f.Calls = f.Calls[:n-1] })
	return nil, nil
}

func (f *Fallback) Last() Call {
	if len(f.Calls) == 0 {
		panic(fmt.Errorf("fallback was never called"))
	}
	return f.Calls[len(f.Calls)-1]
}

// Callback calls its caller back with Data on every call, the way a flash
// loan provider re-enters the borrower.
type Callback struct {
	Data []byte
	// Times is how often each call re-enters; zero means once.
	Times int
}

func (c *Callback) Run(env *chain.Env) ([]byte, error) {
	if len(c.Data) == 0 {
		return nil, nil
	}
	var ret []byte
	for i := 0; i < max(c.Times, 1); i++ {
		out, err := env.Call(env.Caller(), nil, c.Data)
		if err != nil {
			return nil, err
		}
		ret = out
	}
	return ret, nil
}

// Forwarder sends Data to Target on every call. Used to make a protocol call
// back into the router mid batch.
type Forwarder struct {
	Target common.Address
	Data   []byte
	// Returned holds the bytes the target returned on the last call.
	Returned []byte
}

func (f *Forwarder) Run(env *chain.Env) ([]byte, error) {
	ret, err := env.Call(f.Target, nil, f.Data)
	if err != nil {
		return nil, err
	}
	f.Returned = ret
	return ret, nil
}

func GetDefaultCache() *bigcache.BigCache {
	config := bigcache.Config{
		Shards:             16,
		LifeWindow:         10 * time.Minute,
		CleanWindow:        5 * time.Minute,
		MaxEntriesInWindow: 1000,
		MaxEntrySize:       256,
		Verbose:            false,
		HardMaxCacheSize:   64,
	}
	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		panic(fmt.Errorf("error get default cache for test"))
	}
	return cache
}
