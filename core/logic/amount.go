package logic

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/revert"
)

const (
	selectorLength = 4
	wordLength     = 32
)

var bpsBase = big.NewInt(BPSBase)

// IsShare reports whether the input amount is a share of the balance rather
// than a literal quantity.
func (in Input) IsShare() bool {
	return in.AmountOrOffset.Cmp(OffsetNotUsed) == 0 || in.BalanceBps.Sign() != 0
}

// HasOffset reports whether the resolved amount must be written into the call
// data at AmountOrOffset.
func (in Input) HasOffset() bool {
	return in.BalanceBps.Sign() != 0 && in.AmountOrOffset.Cmp(OffsetNotUsed) != 0
}

// ValidateBps fails with InvalidBps when the input's bps is above 10000. It is
// checked before anything else about the input.
func (in Input) ValidateBps() error {
	if in.BalanceBps == nil || in.BalanceBps.Sign() < 0 || in.BalanceBps.Cmp(bpsBase) > 0 {
		return revert.NewStructuredError(revert.CodeInvalidBps, "balance bps out of range", map[string]interface{}{
			"token": in.Token.Hex(),
			"bps":   bigString(in.BalanceBps),
		})
	}
	return nil
}

// ResolveAmount turns in into a concrete quantity given the holder's current
// balance of in.Token. Shares truncate: balance * bps / 10000. Literal amounts
// are returned unchanged, even when above balance; the transfer that spends
// them is what fails.
func ResolveAmount(in Input, balance *big.Int) (*big.Int, error) {
	if err := in.ValidateBps(); err != nil {
		return nil, err
	}
	if in.AmountOrOffset == nil {
		return nil, revert.Errorf(revert.CodeInvalidOffset, "missing amount for %s", in.Token.Hex())
	}

	if !in.IsShare() {
		return new(big.Int).Set(in.AmountOrOffset), nil
	}

	amount := new(big.Int).Mul(balance, in.BalanceBps)
	return amount.Quo(amount, bpsBase), nil
}

// ReplaceAmount writes amount as a 32 byte word into data at offset, counted
// from the end of the 4 byte selector. data is not modified.
func ReplaceAmount(data []byte, offset *big.Int, amount *big.Int) ([]byte, error) {
	if !offset.IsUint64() || offset.Uint64() > uint64(len(data)) || uint64(len(data)) < selectorLength+wordLength ||
		offset.Uint64() > uint64(len(data)-selectorLength-wordLength) {
		return nil, revert.NewStructuredError(revert.CodeInvalidOffset, "amount offset outside call data", map[string]interface{}{
			"offset":  offset.String(),
			"dataLen": len(data),
		})
	}

	out := make([]byte, len(data))
	copy(out, data)
	start := selectorLength + int(offset.Uint64())
	amount.FillBytes(out[start : start+wordLength])
	return out, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
