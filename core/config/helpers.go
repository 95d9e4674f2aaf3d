package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func convertToAddressSlice(addresses []string) []common.Address {
	result := make([]common.Address, len(addresses))
	for i, addr := range addresses {
		result[i] = common.HexToAddress(addr)
	}
	return result
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("config: %s is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// parseAmount accepts a decimal or 0x prefixed integer.
func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 0)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s is not a valid amount: %q", field, value)
	}
	return amount, nil
}
