// Package agent implements the per-user execution context. An agent holds a
// single user's working balances and interprets a list of logics on the
// router's behalf: it resolves input amounts, wraps and unwraps the native
// asset, grants allowances, performs the external calls and hands requested
// tokens back to the router.
package agent

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/chainio/permit2"
	"github.com/AvaProtocol/ap-router/core/chainio/wrappednative"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

type Config struct {
	User          common.Address
	WrappedNative common.Address
	Permit2       common.Address
	Logger        logger.Logger
}

// callbackMarker is the one-shot capability armed for a single logic step.
// Only expectedCaller may consume it, and only while step is running.
type callbackMarker struct {
	expectedCaller common.Address
	step           uint64
}

func (m callbackMarker) armed() bool {
	return m.expectedCaller != (common.Address{})
}

type Agent struct {
	user          common.Address
	wrappedNative common.Address
	permit2       common.Address
	logger        logger.Logger

	// router is the dispatcher bound by initialize. Zero until then.
	router   common.Address
	callback callbackMarker
	steps    uint64
}

func New(cfg Config) *Agent {
	return &Agent{
		user:          cfg.User,
		wrappedNative: cfg.WrappedNative,
		permit2:       cfg.Permit2,
		logger:        logger.EnsureLogger(cfg.Logger),
	}
}

func (a *Agent) User() common.Address   { return a.user }
func (a *Agent) Router() common.Address { return a.router }

// CallbackArmed reports whether a callback is waiting to be consumed.
func (a *Agent) CallbackArmed() bool {
	return a.callback.armed()
}

func (a *Agent) Run(env *chain.Env) ([]byte, error) {
	method, args, err := chain.DecodeCall(&agentABI, env.Data())
	if err != nil {
		return nil, err
	}
	if method == nil {
		// plain native transfers are accepted, e.g. unwrapped funds
		return nil, nil
	}

	switch method.Name {
	case "initialize":
		return nil, a.Initialize(env)
	case "router":
		return method.Outputs.Pack(a.router)
	case "user":
		return method.Outputs.Pack(a.user)
	case "execute":
		logics, err := logic.ConvertLogics(args[1])
		if err != nil {
			return nil, revert.Errorf(revert.CodeExecutionReverted, "decode logics: %v", err)
		}
		return nil, a.Execute(env, args[0].([][]byte), logics, args[2].([]common.Address))
	case "executeByCallback":
		logics, err := logic.ConvertLogics(args[0])
		if err != nil {
			return nil, revert.Errorf(revert.CodeExecutionReverted, "decode logics: %v", err)
		}
		return nil, a.ExecuteByCallback(env, logics)
	}
	return nil, revert.Errorf(revert.CodeExecutionReverted, "agent: unsupported method %s", method.Name)
}

// Initialize binds the caller as the agent's router. It can only happen once.
func (a *Agent) Initialize(env *chain.Env) error {
	if a.router != (common.Address{}) {
		return revert.Errorf(revert.CodeAlreadyInitialized, "agent %s already bound to %s", env.Self().Hex(), a.router.Hex())
	}
	a.router = env.Caller()
	env.Journal(func() { a.router = common.Address{} })
	return nil
}

// Execute runs a batch for the router: permit2 pulls first, then every logic
// in order, then the return sweep.
func (a *Agent) Execute(env *chain.Env, permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address) error {
	if env.Caller() != a.router || a.router == (common.Address{}) {
		return revert.Errorf(revert.CodeUnauthorized, "agent: caller %s is not the router", env.Caller().Hex())
	}

	if err := a.doPermit2(env, permit2Datas); err != nil {
		return err
	}
	if err := a.executeLogics(env, logics); err != nil {
		return err
	}
	return a.returnTokens(env, tokensReturn)
}

// ExecuteByCallback is the re-entry point for the protocol a logic armed as
// its callback. Consuming the marker disarms it.
func (a *Agent) ExecuteByCallback(env *chain.Env, logics []logic.Logic) error {
	if !a.callback.armed() || env.Caller() != a.callback.expectedCaller {
		return revert.Errorf(revert.CodeUnauthorized, "agent: caller %s is not the armed callback", env.Caller().Hex())
	}

	a.logger.Debug("callback consumed", "agent", env.Self().Hex(), "caller", env.Caller().Hex(), "step", a.callback.step)
	a.setCallback(env, callbackMarker{})

	return a.executeLogics(env, logics)
}

func (a *Agent) doPermit2(env *chain.Env, datas [][]byte) error {
	if len(datas) == 0 {
		return nil
	}
	if !env.HasCode(a.permit2) {
		return revert.Errorf(revert.CodeInvalidPermit2Data, "permit2 %s has no code", a.permit2.Hex())
	}

	for i, data := range datas {
		details, err := permit2.DecodeTransferFrom(data)
		if err != nil {
			return err
		}
		for _, d := range details {
			if d.From != a.user {
				return revert.NewStructuredError(revert.CodeInvalidPermit2Data, "permit2 transfer is not from the agent's user", map[string]interface{}{
					"index": i,
					"from":  d.From.Hex(),
					"user":  a.user.Hex(),
				})
			}
		}
		if _, err := env.Call(a.permit2, nil, data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) executeLogics(env *chain.Env, logics []logic.Logic) error {
	for i, l := range logics {
		if err := a.executeLogic(env, l); err != nil {
			a.logger.Debug("logic failed", "agent", env.Self().Hex(), "index", i, "to", l.To.Hex(), "err", err)
			return err
		}
	}
	return nil
}

func (a *Agent) executeLogic(env *chain.Env, l logic.Logic) error {
	self := env.Self()
	step := a.nextStep(env)

	if l.To == a.permit2 && a.permit2 != (common.Address{}) {
		return revert.Errorf(revert.CodeInvalidPermit2Data, "logic %d calls permit2 directly", step)
	}

	data := []byte(l.Data)
	value := new(big.Int)
	wrapAmount := new(big.Int)
	approveTo := l.ApproveTarget()

	for _, in := range l.Inputs {
		if err := in.ValidateBps(); err != nil {
			return err
		}

		wrapping := l.WrapMode == logic.WrapModeWrapBefore && in.Token == a.wrappedNative

		balance := new(big.Int)
		if in.IsShare() {
			balanceToken := in.Token
			if wrapping {
				// the wrapped amount comes out of the native balance
				balanceToken = logic.NativeToken
			}
			var err error
			if balance, err = a.balanceOf(env, balanceToken); err != nil {
				return err
			}
		}

		amount, err := logic.ResolveAmount(in, balance)
		if err != nil {
			return err
		}

		if in.HasOffset() {
			if data, err = logic.ReplaceAmount(data, in.AmountOrOffset, amount); err != nil {
				return err
			}
		}

		if wrapping {
			wrapAmount.Add(wrapAmount, amount)
		}

		if logic.IsNative(in.Token) {
			value.Add(value, amount)
			continue
		}
		if in.Token != approveTo {
			if err := a.approveMax(env, in.Token, approveTo, amount); err != nil {
				return err
			}
		}
	}

	if wrapAmount.Sign() > 0 {
		deposit, err := wrappednative.PackDeposit()
		if err != nil {
			return err
		}
		if _, err := env.Call(a.wrappedNative, wrapAmount, deposit); err != nil {
			return err
		}
	}

	var wrappedBefore *big.Int
	if l.WrapMode == logic.WrapModeUnwrapAfter {
		var err error
		if wrappedBefore, err = erc20.BalanceOf(env, a.wrappedNative, self); err != nil {
			return err
		}
	}

	if l.Callback != (common.Address{}) {
		a.setCallback(env, callbackMarker{expectedCaller: l.Callback, step: step})
	}

	if len(data) > 0 && !env.HasCode(l.To) {
		return revert.Errorf(revert.CodeCallToNonContract, "logic %d: %s has no code", step, l.To.Hex())
	}
	if _, err := env.Call(l.To, value, data); err != nil {
		return err
	}

	if a.callback.armed() {
		return revert.NewStructuredError(revert.CodeUnresolvedCallback, "callback was not consumed", map[string]interface{}{
			"callback": a.callback.expectedCaller.Hex(),
			"step":     a.callback.step,
		})
	}

	if l.WrapMode == logic.WrapModeUnwrapAfter {
		wrappedAfter, err := erc20.BalanceOf(env, a.wrappedNative, self)
		if err != nil {
			return err
		}
		gained := new(big.Int).Sub(wrappedAfter, wrappedBefore)
		if gained.Sign() > 0 {
			withdraw, err := wrappednative.PackWithdraw(gained)
			if err != nil {
				return err
			}
			if _, err := env.Call(a.wrappedNative, nil, withdraw); err != nil {
				return err
			}
		}
	}

	a.logger.Debug("logic executed", "agent", self.Hex(), "step", step, "to", l.To.Hex(), "value", value.String())
	return nil
}

// returnTokens sends the agent's full balance of each listed token to the
// router. Tokens that are not listed stay with the agent.
func (a *Agent) returnTokens(env *chain.Env, tokens []common.Address) error {
	for _, token := range tokens {
		balance, err := a.balanceOf(env, token)
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			continue
		}

		if logic.IsNative(token) {
			if _, err := env.Call(a.router, balance, nil); err != nil {
				return err
			}
			continue
		}
		if err := erc20.Transfer(env, token, a.router, balance); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) balanceOf(env *chain.Env, token common.Address) (*big.Int, error) {
	if logic.IsNative(token) {
		return env.BalanceOf(env.Self()), nil
	}
	return erc20.BalanceOf(env, token, env.Self())
}

// approveMax leaves spender with an unlimited allowance when the current one
// does not cover amount.
func (a *Agent) approveMax(env *chain.Env, token, spender common.Address, amount *big.Int) error {
	allowance, err := erc20.Allowance(env, token, env.Self(), spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	return erc20.Approve(env, token, spender, math.MaxBig256)
}

func (a *Agent) setCallback(env *chain.Env, m callbackMarker) {
	prev := a.callback
	a.callback = m
	env.Journal(func() { a.callback = prev })
}

func (a *Agent) nextStep(env *chain.Env) uint64 {
	a.steps++
	env.Journal(func() { a.steps-- })
	return a.steps
}
