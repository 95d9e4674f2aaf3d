package logic

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "ap-router"
	DomainVersion = "1"
)

var batchTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Input": {
		{Name: "token", Type: "address"},
		{Name: "balanceBps", Type: "uint256"},
		{Name: "amountOrOffset", Type: "uint256"},
	},
	"Logic": {
		{Name: "to", Type: "address"},
		{Name: "data", Type: "bytes"},
		{Name: "inputs", Type: "Input[]"},
		{Name: "wrapMode", Type: "uint8"},
		{Name: "approveTo", Type: "address"},
		{Name: "callback", Type: "address"},
	},
	"Fee": {
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "metadata", Type: "bytes32"},
	},
	"LogicBatch": {
		{Name: "logics", Type: "Logic[]"},
		{Name: "fees", Type: "Fee[]"},
		{Name: "deadline", Type: "uint256"},
	},
}

// Domain identifies the router a signature is valid for.
func Domain(chainID *big.Int, router common.Address) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
		VerifyingContract: router.Hex(),
	}
}

// TypedData builds the EIP-712 document for batch, as wallets display it.
func (b LogicBatch) TypedData(chainID *big.Int, router common.Address) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       batchTypes,
		PrimaryType: "LogicBatch",
		Domain:      Domain(chainID, router),
		Message:     b.message(),
	}
}

// Hash is the EIP-712 digest a signer signs to authorize batch on router.
func (b LogicBatch) Hash(chainID *big.Int, router common.Address) (common.Hash, error) {
	td := b.TypedData(chainID, router)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash batch: %w", err)
	}

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator, structHash), nil
}

func (b LogicBatch) message() apitypes.TypedDataMessage {
	logics := make([]interface{}, 0, len(b.Logics))
	for _, l := range b.Logics {
		inputs := make([]interface{}, 0, len(l.Inputs))
		for _, in := range l.Inputs {
			inputs = append(inputs, map[string]interface{}{
				"token":          in.Token.Hex(),
				"balanceBps":     orZero(in.BalanceBps),
				"amountOrOffset": orZero(in.AmountOrOffset),
			})
		}
		logics = append(logics, map[string]interface{}{
			"to":        l.To.Hex(),
			"data":      hexutil.Bytes(l.Data),
			"inputs":    inputs,
			"wrapMode":  new(big.Int).SetUint64(uint64(l.WrapMode)),
			"approveTo": l.ApproveTo.Hex(),
			"callback":  l.Callback.Hex(),
		})
	}

	fees := make([]interface{}, 0, len(b.Fees))
	for _, f := range b.Fees {
		fees = append(fees, map[string]interface{}{
			"token":    f.Token.Hex(),
			"amount":   orZero(f.Amount),
			"metadata": hexutil.Bytes(f.Metadata[:]),
		})
	}

	return apitypes.TypedDataMessage{
		"logics":   logics,
		"fees":     fees,
		"deadline": orZero(b.Deadline),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
