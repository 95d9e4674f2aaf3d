package byte4

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GetMethodFromCalldata returns the ABI method for a given 4-byte selector or full calldata
func GetMethodFromCalldata(parsedABI abi.ABI, selector []byte) (*abi.Method, error) {
	if len(selector) < 4 {
		return nil, fmt.Errorf("invalid selector length: %d", len(selector))
	}

	methodID := selector[:4]
	for _, method := range parsedABI.Methods {
		// method.ID is keccak256(RawName(types...))[:4], so overloads keyed as
		// name0, name1 still match on their real signature
		if bytes.Equal(method.ID, methodID) {
			m := method
			return &m, nil
		}
	}

	return nil, fmt.Errorf("no matching method found for selector: 0x%x", methodID)
}

// Describe names the call in calldata for logs and history. It tries each
// ABI in order, falls back to the hex selector, and returns "receive" for a
// bare value transfer.
func Describe(calldata []byte, abis ...abi.ABI) string {
	if len(calldata) == 0 {
		return "receive"
	}
	if len(calldata) < 4 {
		return hexutil.Encode(calldata)
	}
	for _, parsed := range abis {
		if method, err := GetMethodFromCalldata(parsed, calldata); err == nil {
			return method.RawName
		}
	}
	return hexutil.Encode(calldata[:4])
}
