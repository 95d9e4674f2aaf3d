package logic

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments shared by the router and agent entry points.
const (
	InputComponentsJSON = `[{"name":"token","type":"address"},{"name":"balanceBps","type":"uint256"},{"name":"amountOrOffset","type":"uint256"}]`
	LogicComponentsJSON = `[{"name":"to","type":"address"},{"name":"data","type":"bytes"},{"name":"inputs","type":"tuple[]","components":` + InputComponentsJSON + `},{"name":"wrapMode","type":"uint8"},{"name":"approveTo","type":"address"},{"name":"callback","type":"address"}]`
	FeeComponentsJSON   = `[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"metadata","type":"bytes32"}]`
	BatchComponentsJSON = `[{"name":"logics","type":"tuple[]","components":` + LogicComponentsJSON + `},{"name":"fees","type":"tuple[]","components":` + FeeComponentsJSON + `},{"name":"deadline","type":"uint256"}]`
)

// ConvertLogics turns an unpacked ABI logic tuple array into Logics.
func ConvertLogics(v interface{}) (logics []Logic, err error) {
	err = convert(v, &logics)
	return logics, err
}

func ConvertBatch(v interface{}) (batch LogicBatch, err error) {
	err = convert(v, &batch)
	return batch, err
}

func ConvertFees(v interface{}) (fees []Fee, err error) {
	err = convert(v, &fees)
	return fees, err
}

// abi.ConvertType panics when the shapes differ; callers get an error instead
// since the value comes from untrusted call data.
func convert(in interface{}, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("abi convert %T: %v", in, r)
		}
	}()
	abi.ConvertType(in, out)
	return nil
}
