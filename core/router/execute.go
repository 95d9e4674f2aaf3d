package router

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/agent"
	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FeeRateMetadata tags the Charged event of the router's own fee rate.
var FeeRateMetadata = crypto.Keccak256Hash([]byte("ap-router:fee-rate"))

// Execute runs logics for the caller.
func (r *Router) Execute(env *chain.Env, permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address, referral uint16) error {
	user, err := r.authorizeDirect(env)
	if err != nil {
		return err
	}
	return r.execute(env, user, permit2Datas, logics, nil, tokensReturn, referral)
}

// ExecuteWithSignature runs a batch authorized by an allow-listed signer. The
// signer is the acting user and the batch fees go to the fee collector.
func (r *Router) ExecuteWithSignature(env *chain.Env, permit2Datas [][]byte, batch logic.LogicBatch, signer common.Address, signature []byte, tokensReturn []common.Address, referral uint16) error {
	user, err := r.authorizeSigned(env, batch, signer, signature)
	if err != nil {
		return err
	}
	return r.execute(env, user, permit2Datas, batch.Logics, batch.Fees, tokensReturn, referral)
}

func (r *Router) execute(env *chain.Env, user common.Address, permit2Datas [][]byte, logics []logic.Logic, fees []logic.Fee, tokensReturn []common.Address, referral uint16) error {
	if !r.active.IsIdle() {
		return revert.NewStructuredError(revert.CodeReentrancyOrPaused, "router is busy", map[string]interface{}{
			"state": r.active.String(),
		})
	}
	r.setActive(env, Executing(user))

	agentAddr, err := r.getOrCreateAgent(env, user)
	if err != nil {
		return err
	}

	value, err := r.charge(env, user, env.Value(), fees)
	if err != nil {
		return err
	}

	data, err := agent.PackExecute(permit2Datas, logics, tokensReturn)
	if err != nil {
		return revert.Errorf(revert.CodeExecutionReverted, "encode agent call: %v", err)
	}
	held, err := r.heldBalances(env, value, tokensReturn)
	if err != nil {
		return err
	}
	if _, err := env.Call(agentAddr, value, data); err != nil {
		return err
	}

	if err := r.forwardReturns(env, user, tokensReturn, held); err != nil {
		return err
	}

	if err := env.EmitEvent(routerABI.Events["Execute"], user, agentAddr, referral); err != nil {
		return err
	}

	// a pause issued from inside the batch takes effect now
	r.setActive(env, r.active.Settled())
	r.logger.Debug("batch executed", "user", user.Hex(), "agent", agentAddr.Hex(), "logics", len(logics), "referral", referral)
	return nil
}

// charge pays the router fee rate on value and the signed batch fees to the
// fee collector, and returns the value left for the agent. Native fees come
// out of the call value, token fees are pulled from the user with their
// allowance to the router.
func (r *Router) charge(env *chain.Env, user common.Address, value *big.Int, fees []logic.Fee) (*big.Int, error) {
	remaining := new(big.Int).Set(value)

	if r.feeRate > 0 && remaining.Sign() > 0 {
		fee := new(big.Int).Mul(remaining, new(big.Int).SetUint64(r.feeRate))
		fee.Quo(fee, big.NewInt(logic.BPSBase))
		if fee.Sign() > 0 {
			if err := r.chargeNative(env, fee, FeeRateMetadata); err != nil {
				return nil, err
			}
			remaining.Sub(remaining, fee)
		}
	}

	for _, f := range fees {
		if f.Amount == nil || f.Amount.Sign() == 0 {
			continue
		}
		if logic.IsNative(f.Token) {
			if remaining.Cmp(f.Amount) < 0 {
				return nil, revert.NewStructuredError(revert.CodeInsufficientBalance, "call value does not cover native fee", map[string]interface{}{
					"value": remaining.String(),
					"fee":   f.Amount.String(),
				})
			}
			if err := r.chargeNative(env, f.Amount, f.Metadata); err != nil {
				return nil, err
			}
			remaining.Sub(remaining, f.Amount)
			continue
		}

		if err := erc20.TransferFrom(env, f.Token, user, r.feeCollector, f.Amount); err != nil {
			return nil, err
		}
		if err := env.EmitEvent(routerABI.Events["Charged"], f.Token, f.Amount, r.feeCollector, f.Metadata); err != nil {
			return nil, err
		}
	}
	return remaining, nil
}

func (r *Router) chargeNative(env *chain.Env, amount *big.Int, metadata [32]byte) error {
	if err := env.Transfer(r.feeCollector, amount); err != nil {
		return err
	}
	return env.EmitEvent(routerABI.Events["Charged"], logic.NativeToken, amount, r.feeCollector, metadata)
}

// heldBalances records what the router owns apart from this call's value, so
// stray funds stay put for rescue instead of following tokensReturn.
func (r *Router) heldBalances(env *chain.Env, value *big.Int, tokensReturn []common.Address) (map[common.Address]*big.Int, error) {
	self := env.Self()
	held := map[common.Address]*big.Int{
		logic.NativeToken: new(big.Int).Sub(env.BalanceOf(self), value),
	}
	for _, token := range tokensReturn {
		if _, ok := held[token]; ok {
			continue
		}
		balance, err := erc20.BalanceOf(env, token, self)
		if err != nil {
			return nil, err
		}
		held[token] = balance
	}
	return held, nil
}

// forwardReturns passes on to the user what the agent handed back on top of
// held, tokens first and native last.
func (r *Router) forwardReturns(env *chain.Env, user common.Address, tokensReturn []common.Address, held map[common.Address]*big.Int) error {
	self := env.Self()
	for _, token := range tokensReturn {
		if logic.IsNative(token) {
			continue
		}
		balance, err := erc20.BalanceOf(env, token, self)
		if err != nil {
			return err
		}
		returned := new(big.Int).Sub(balance, held[token])
		if returned.Sign() <= 0 {
			continue
		}
		if err := erc20.Transfer(env, token, user, returned); err != nil {
			return err
		}
	}

	if native := new(big.Int).Sub(env.BalanceOf(self), held[logic.NativeToken]); native.Sign() > 0 {
		return env.Transfer(user, native)
	}
	return nil
}
