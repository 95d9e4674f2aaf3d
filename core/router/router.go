// Package router implements the dispatcher every batch enters through. The
// router authorizes the request, provisions the user's agent, forwards the
// batch and its value to it, and returns whatever the agent hands back to the
// user. It also carries the owner, pauser, fee collector and signer set.
package router

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/AvaProtocol/ap-router/core/agent"
	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// MaxFeeRate is the fee rate cap, in basis points.
const MaxFeeRate = logic.BPSBase

type Config struct {
	WrappedNative      common.Address
	Permit2            common.Address
	Owner              common.Address
	Pauser             common.Address
	FeeCollector       common.Address
	Signers            []common.Address
	FeeRate            uint64
	ImplementationHash common.Hash
	Logger             logger.Logger
}

type Router struct {
	wrappedNative      common.Address
	permit2            common.Address
	implementationHash common.Hash
	logger             logger.Logger

	owner        common.Address
	pauser       common.Address
	feeCollector common.Address
	feeRate      uint64
	signers      map[common.Address]bool

	active ActiveUser
	agents map[common.Address]common.Address
}

// New builds the router contract. Owner, pauser and fee collector are
// required; a zero implementation hash selects agent.DefaultImplementationHash.
func New(cfg Config) (*Router, error) {
	if cfg.Owner == (common.Address{}) || cfg.Pauser == (common.Address{}) || cfg.FeeCollector == (common.Address{}) {
		return nil, revert.Errorf(revert.CodeInvalidAddress, "owner, pauser and fee collector must be set")
	}
	if cfg.FeeRate > MaxFeeRate {
		return nil, revert.Errorf(revert.CodeInvalidFeeRate, "fee rate %d above %d", cfg.FeeRate, MaxFeeRate)
	}

	implementationHash := cfg.ImplementationHash
	if implementationHash == (common.Hash{}) {
		implementationHash = agent.DefaultImplementationHash
	}

	r := &Router{
		wrappedNative:      cfg.WrappedNative,
		permit2:            cfg.Permit2,
		implementationHash: implementationHash,
		logger:             logger.EnsureLogger(cfg.Logger),
		owner:              cfg.Owner,
		pauser:             cfg.Pauser,
		feeCollector:       cfg.FeeCollector,
		feeRate:            cfg.FeeRate,
		signers:            make(map[common.Address]bool),
		active:             Idle(),
		agents:             make(map[common.Address]common.Address),
	}
	for _, s := range cfg.Signers {
		r.signers[s] = true
	}
	return r, nil
}

func (r *Router) Run(env *chain.Env) ([]byte, error) {
	method, args, err := chain.DecodeCall(&routerABI, env.Data())
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, r.receive(env)
	}
	if env.Value().Sign() > 0 && !method.IsPayable() {
		return nil, revert.Errorf(revert.CodeInvalidAction, "router: %s is not payable", method.Name)
	}

	switch method.Name {
	case "execute":
		logics, err := logic.ConvertLogics(args[1])
		if err != nil {
			return nil, revert.Errorf(revert.CodeExecutionReverted, "decode logics: %v", err)
		}
		return nil, r.Execute(env, args[0].([][]byte), logics, args[2].([]common.Address), args[3].(uint16))
	case "executeWithSignature":
		batch, err := logic.ConvertBatch(args[1])
		if err != nil {
			return nil, revert.Errorf(revert.CodeExecutionReverted, "decode logic batch: %v", err)
		}
		return nil, r.ExecuteWithSignature(env, args[0].([][]byte), batch, args[2].(common.Address), args[3].([]byte), args[4].([]common.Address), args[5].(uint16))
	case "newAgent":
		addr, err := r.NewAgent(env, env.Caller())
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(addr)
	case "newAgentFor":
		addr, err := r.NewAgent(env, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(addr)
	case "calcAgent":
		return method.Outputs.Pack(r.CalcAgent(env.Self(), args[0].(common.Address)))
	case "getAgent":
		return method.Outputs.Pack(r.GetAgent(args[0].(common.Address)))
	case "getCurrentUserAgent":
		user, agentAddr := r.CurrentUserAgent()
		return method.Outputs.Pack(user, agentAddr)
	case "currentUser":
		return method.Outputs.Pack(r.active.Address())
	case "owner":
		return method.Outputs.Pack(r.owner)
	case "pauser":
		return method.Outputs.Pack(r.pauser)
	case "feeCollector":
		return method.Outputs.Pack(r.feeCollector)
	case "feeRate":
		return method.Outputs.Pack(new(big.Int).SetUint64(r.feeRate))
	case "signers":
		return method.Outputs.Pack(r.signers[args[0].(common.Address)])
	case "wrappedNative":
		return method.Outputs.Pack(r.wrappedNative)
	case "permit2":
		return method.Outputs.Pack(r.permit2)
	case "agentImplementationHash":
		return method.Outputs.Pack([32]byte(r.implementationHash))
	case "pause":
		return nil, r.Pause(env)
	case "unpause":
		return nil, r.Unpause(env)
	case "addSigner":
		return nil, r.AddSigner(env, args[0].(common.Address))
	case "removeSigner":
		return nil, r.RemoveSigner(env, args[0].(common.Address))
	case "setPauser":
		return nil, r.SetPauser(env, args[0].(common.Address))
	case "setFeeCollector":
		return nil, r.SetFeeCollector(env, args[0].(common.Address))
	case "setFeeRate":
		return nil, r.SetFeeRate(env, args[0].(*big.Int))
	case "rescue":
		return nil, r.Rescue(env, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int))
	case "transferOwnership":
		return nil, r.TransferOwnership(env, args[0].(common.Address))
	}
	return nil, revert.Errorf(revert.CodeExecutionReverted, "router: unsupported method %s", method.Name)
}

// receive only accepts native value the executing user's agent returns.
func (r *Router) receive(env *chain.Env) error {
	if user, ok := r.active.User(); ok && env.Caller() == r.agents[user] {
		return nil
	}
	return revert.Errorf(revert.CodeInvalidAction, "router: unexpected native transfer from %s", env.Caller().Hex())
}

func (r *Router) Active() ActiveUser {
	return r.active
}

func (r *Router) Owner() common.Address        { return r.owner }
func (r *Router) Pauser() common.Address       { return r.pauser }
func (r *Router) FeeCollector() common.Address { return r.feeCollector }
func (r *Router) FeeRate() uint64              { return r.feeRate }
func (r *Router) WrappedNative() common.Address {
	return r.wrappedNative
}
func (r *Router) Permit2() common.Address           { return r.permit2 }
func (r *Router) ImplementationHash() common.Hash   { return r.implementationHash }
func (r *Router) IsSigner(addr common.Address) bool { return r.signers[addr] }

// Signers lists the allow-listed signers in address order.
func (r *Router) Signers() []common.Address {
	out := lo.Keys(lo.PickByValues(r.signers, []bool{true}))
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// CalcAgent predicts user's agent address whether or not it exists yet.
func (r *Router) CalcAgent(self, user common.Address) common.Address {
	return agent.DeriveAddress(self, user, r.implementationHash)
}

// GetAgent returns user's agent, or the zero address before it is created.
func (r *Router) GetAgent(user common.Address) common.Address {
	return r.agents[user]
}

// CurrentUserAgent reports the executing user and their agent, or zero
// addresses when no batch is running.
func (r *Router) CurrentUserAgent() (common.Address, common.Address) {
	user, ok := r.active.User()
	if !ok {
		return common.Address{}, common.Address{}
	}
	return user, r.agents[user]
}

// NewAgent deploys and initializes user's agent. Each user gets one.
func (r *Router) NewAgent(env *chain.Env, user common.Address) (common.Address, error) {
	if user == (common.Address{}) {
		return common.Address{}, revert.Errorf(revert.CodeInvalidAddress, "router: agent for the zero address")
	}
	if existing, ok := r.agents[user]; ok {
		return common.Address{}, revert.NewStructuredError(revert.CodeAgentAlreadyExists, "agent already exists", map[string]interface{}{
			"user":  user.Hex(),
			"agent": existing.Hex(),
		})
	}
	return r.newAgent(env, user)
}

func (r *Router) newAgent(env *chain.Env, user common.Address) (common.Address, error) {
	addr := r.CalcAgent(env.Self(), user)

	a := agent.New(agent.Config{
		User:          user,
		WrappedNative: r.wrappedNative,
		Permit2:       r.permit2,
		Logger:        r.logger,
	})
	if err := env.Deploy(addr, a); err != nil {
		return common.Address{}, revert.Errorf(revert.CodeAgentAlreadyExists, "deploy agent: %v", err)
	}

	initialize, err := agent.PackInitialize()
	if err != nil {
		return common.Address{}, err
	}
	if _, err := env.Call(addr, nil, initialize); err != nil {
		return common.Address{}, err
	}

	r.agents[user] = addr
	env.Journal(func() { delete(r.agents, user) })

	r.logger.Debug("agent created", "user", user.Hex(), "agent", addr.Hex())
	return addr, env.EmitEvent(routerABI.Events["AgentCreated"], addr, user)
}

// getOrCreateAgent returns the user's agent, provisioning it on first use.
func (r *Router) getOrCreateAgent(env *chain.Env, user common.Address) (common.Address, error) {
	if addr, ok := r.agents[user]; ok {
		return addr, nil
	}
	return r.newAgent(env, user)
}

func (r *Router) setActive(env *chain.Env, next ActiveUser) {
	prev := r.active
	r.active = next
	env.Journal(func() { r.active = prev })
}
