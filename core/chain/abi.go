package chain

import (
	"fmt"
	"strings"

	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MustParseABI parses a JSON ABI and panics on malformed input. Contract ABIs
// are package constants, so a parse failure is a programming error.
func MustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Errorf("invalid contract ABI: %w", err))
	}
	return parsed
}

// DecodeCall resolves the method addressed by data's selector and unpacks its
// arguments. Empty data yields a nil method, which contracts treat as a plain
// native transfer.
func DecodeCall(contractABI *abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	if len(data) < 4 {
		return nil, nil, revert.Errorf(revert.CodeExecutionReverted, "call data too short: %s", hexutil.Encode(data))
	}

	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert.Errorf(revert.CodeExecutionReverted, "unknown selector %s", hexutil.Encode(data[:4]))
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revert.Errorf(revert.CodeExecutionReverted, "malformed %s arguments: %v", method.Name, err)
	}
	return method, args, nil
}
