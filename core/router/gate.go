package router

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/signer"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/common"
)

// authorizeDirect admits the immediate caller as the acting user.
func (r *Router) authorizeDirect(env *chain.Env) (common.Address, error) {
	if r.active.IsPaused() {
		return common.Address{}, revert.Errorf(revert.CodePaused, "router is paused")
	}
	return env.Caller(), nil
}

// authorizeSigned admits the allow-listed signer of batch as the acting user.
// Checks run in order: paused, signer membership, deadline, signature.
func (r *Router) authorizeSigned(env *chain.Env, batch logic.LogicBatch, claimed common.Address, signature []byte) (common.Address, error) {
	if r.active.IsPaused() {
		return common.Address{}, revert.Errorf(revert.CodePaused, "router is paused")
	}
	if !r.signers[claimed] {
		return common.Address{}, revert.NewStructuredError(revert.CodeInvalidSigner, "signer is not allowed", map[string]interface{}{
			"signer": claimed.Hex(),
		})
	}

	now := env.Now().Unix()
	if batch.Deadline == nil || batch.Deadline.Cmp(big.NewInt(now)) < 0 {
		return common.Address{}, revert.NewStructuredError(revert.CodeSignatureExpired, "logic batch expired", map[string]interface{}{
			"deadline": deadlineString(batch),
			"now":      now,
		})
	}

	digest, err := batch.Hash(env.ChainID(), env.Self())
	if err != nil {
		return common.Address{}, revert.Errorf(revert.CodeInvalidSignature, "hash logic batch: %v", err)
	}
	recovered, err := signer.RecoverHash(digest.Bytes(), signature)
	if err != nil || recovered != claimed {
		return common.Address{}, revert.NewStructuredError(revert.CodeInvalidSignature, "signature does not match signer", map[string]interface{}{
			"signer":    claimed.Hex(),
			"recovered": recovered.Hex(),
		})
	}
	return claimed, nil
}

func deadlineString(batch logic.LogicBatch) string {
	if batch.Deadline == nil {
		return "<nil>"
	}
	return batch.Deadline.String()
}
