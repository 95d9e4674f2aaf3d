package router

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
)

func (r *Router) onlyOwner(env *chain.Env) error {
	if env.Caller() != r.owner {
		return revert.Errorf(revert.CodeUnauthorized, "caller %s is not the owner", env.Caller().Hex())
	}
	return nil
}

func (r *Router) onlyPauser(env *chain.Env) error {
	if env.Caller() != r.pauser {
		return revert.Errorf(revert.CodeUnauthorized, "caller %s is not the pauser", env.Caller().Hex())
	}
	return nil
}

func (r *Router) Pause(env *chain.Env) error {
	if err := r.onlyPauser(env); err != nil {
		return err
	}
	if r.active.IsPaused() || r.active.PausePending() {
		return revert.ErrAlreadyPaused
	}
	if _, executing := r.active.User(); executing {
		r.setActive(env, r.active.WithPausePending(true))
	} else {
		r.setActive(env, Paused())
	}
	return env.EmitEvent(routerABI.Events["Paused"])
}

func (r *Router) Unpause(env *chain.Env) error {
	if err := r.onlyPauser(env); err != nil {
		return err
	}
	switch {
	case r.active.PausePending():
		r.setActive(env, r.active.WithPausePending(false))
	case r.active.IsPaused():
		r.setActive(env, Idle())
	default:
		return revert.ErrNotPaused
	}
	return env.EmitEvent(routerABI.Events["Unpaused"])
}

func (r *Router) AddSigner(env *chain.Env, signer common.Address) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	r.setSigner(env, signer, true)
	return env.EmitEvent(routerABI.Events["SignerAdded"], signer)
}

func (r *Router) RemoveSigner(env *chain.Env, signer common.Address) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	r.setSigner(env, signer, false)
	return env.EmitEvent(routerABI.Events["SignerRemoved"], signer)
}

func (r *Router) setSigner(env *chain.Env, signer common.Address, allowed bool) {
	prev, existed := r.signers[signer]
	if allowed {
		r.signers[signer] = true
	} else {
		delete(r.signers, signer)
	}
	env.Journal(func() {
		if existed {
			r.signers[signer] = prev
			return
		}
		delete(r.signers, signer)
	})
}

func (r *Router) SetPauser(env *chain.Env, pauser common.Address) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	if pauser == (common.Address{}) {
		return revert.Errorf(revert.CodeInvalidAddress, "pauser cannot be the zero address")
	}
	r.setAddress(env, &r.pauser, pauser)
	return env.EmitEvent(routerABI.Events["PauserSet"], pauser)
}

func (r *Router) SetFeeCollector(env *chain.Env, feeCollector common.Address) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	if feeCollector == (common.Address{}) {
		return revert.Errorf(revert.CodeInvalidAddress, "fee collector cannot be the zero address")
	}
	r.setAddress(env, &r.feeCollector, feeCollector)
	return env.EmitEvent(routerABI.Events["FeeCollectorSet"], feeCollector)
}

func (r *Router) SetFeeRate(env *chain.Env, feeRate *big.Int) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	if !feeRate.IsUint64() || feeRate.Uint64() > MaxFeeRate {
		return revert.Errorf(revert.CodeInvalidFeeRate, "fee rate %s above %d", feeRate, MaxFeeRate)
	}
	prev := r.feeRate
	r.feeRate = feeRate.Uint64()
	env.Journal(func() { r.feeRate = prev })
	return env.EmitEvent(routerABI.Events["FeeRateSet"], feeRate)
}

func (r *Router) TransferOwnership(env *chain.Env, newOwner common.Address) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return revert.Errorf(revert.CodeInvalidAddress, "owner cannot be the zero address")
	}
	prev := r.owner
	r.setAddress(env, &r.owner, newOwner)
	return env.EmitEvent(routerABI.Events["OwnershipTransferred"], prev, newOwner)
}

// Rescue moves a stray balance off the router.
func (r *Router) Rescue(env *chain.Env, token, receiver common.Address, amount *big.Int) error {
	if err := r.onlyOwner(env); err != nil {
		return err
	}
	if logic.IsNative(token) {
		return env.Transfer(receiver, amount)
	}
	return erc20.Transfer(env, token, receiver, amount)
}

func (r *Router) setAddress(env *chain.Env, field *common.Address, value common.Address) {
	prev := *field
	*field = value
	env.Journal(func() { *field = prev })
}
