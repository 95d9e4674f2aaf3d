package router

import (
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const logicsArg = `{"name":"logics","type":"tuple[]","components":` + logic.LogicComponentsJSON + `}`

var RouterMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"execute","stateMutability":"payable","inputs":[{"name":"permit2Datas","type":"bytes[]"},` + logicsArg + `,{"name":"tokensReturn","type":"address[]"},{"name":"referral","type":"uint16"}],"outputs":[]},
{"type":"function","name":"executeWithSignature","stateMutability":"payable","inputs":[{"name":"permit2Datas","type":"bytes[]"},{"name":"logicBatch","type":"tuple","components":` + logic.BatchComponentsJSON + `},{"name":"signer","type":"address"},{"name":"signature","type":"bytes"},{"name":"tokensReturn","type":"address[]"},{"name":"referral","type":"uint16"}],"outputs":[]},
{"type":"function","name":"newAgent","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"newAgentFor","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"calcAgent","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getAgent","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getCurrentUserAgent","stateMutability":"view","inputs":[],"outputs":[{"name":"user","type":"address"},{"name":"agent","type":"address"}]},
{"type":"function","name":"currentUser","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"pauser","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"feeCollector","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"feeRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"signers","stateMutability":"view","inputs":[{"name":"signer","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"wrappedNative","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"permit2","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"agentImplementationHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"addSigner","stateMutability":"nonpayable","inputs":[{"name":"signer","type":"address"}],"outputs":[]},
{"type":"function","name":"removeSigner","stateMutability":"nonpayable","inputs":[{"name":"signer","type":"address"}],"outputs":[]},
{"type":"function","name":"setPauser","stateMutability":"nonpayable","inputs":[{"name":"pauser","type":"address"}],"outputs":[]},
{"type":"function","name":"setFeeCollector","stateMutability":"nonpayable","inputs":[{"name":"feeCollector","type":"address"}],"outputs":[]},
{"type":"function","name":"setFeeRate","stateMutability":"nonpayable","inputs":[{"name":"feeRate","type":"uint256"}],"outputs":[]},
{"type":"function","name":"rescue","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"receiver","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[{"name":"newOwner","type":"address"}],"outputs":[]},
{"type":"event","name":"Execute","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"agent","type":"address","indexed":true},{"name":"referral","type":"uint16","indexed":false}]},
{"type":"event","name":"AgentCreated","anonymous":false,"inputs":[{"name":"agent","type":"address","indexed":true},{"name":"user","type":"address","indexed":true}]},
{"type":"event","name":"Charged","anonymous":false,"inputs":[{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"collector","type":"address","indexed":true},{"name":"metadata","type":"bytes32","indexed":false}]},
{"type":"event","name":"SignerAdded","anonymous":false,"inputs":[{"name":"signer","type":"address","indexed":true}]},
{"type":"event","name":"SignerRemoved","anonymous":false,"inputs":[{"name":"signer","type":"address","indexed":true}]},
{"type":"event","name":"PauserSet","anonymous":false,"inputs":[{"name":"pauser","type":"address","indexed":true}]},
{"type":"event","name":"FeeCollectorSet","anonymous":false,"inputs":[{"name":"feeCollector","type":"address","indexed":true}]},
{"type":"event","name":"FeeRateSet","anonymous":false,"inputs":[{"name":"feeRate","type":"uint256","indexed":false}]},
{"type":"event","name":"Paused","anonymous":false,"inputs":[]},
{"type":"event","name":"Unpaused","anonymous":false,"inputs":[]},
{"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[{"name":"previousOwner","type":"address","indexed":true},{"name":"newOwner","type":"address","indexed":true}]}
]`,
}

var routerABI = chain.MustParseABI(RouterMetaData.ABI)

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func PackExecute(permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address, referral uint16) ([]byte, error) {
	return routerABI.Pack("execute", emptyIfNil(permit2Datas), emptyIfNil(logics), emptyIfNil(tokensReturn), referral)
}

func PackExecuteWithSignature(permit2Datas [][]byte, batch logic.LogicBatch, signer common.Address, signature []byte, tokensReturn []common.Address, referral uint16) ([]byte, error) {
	batch.Logics = emptyIfNil(batch.Logics)
	batch.Fees = emptyIfNil(batch.Fees)
	if batch.Deadline == nil {
		batch.Deadline = new(big.Int)
	}
	return routerABI.Pack("executeWithSignature", emptyIfNil(permit2Datas), batch, signer, emptyIfNil(signature), emptyIfNil(tokensReturn), referral)
}

func PackNewAgent() ([]byte, error) {
	return routerABI.Pack("newAgent")
}

func PackNewAgentFor(user common.Address) ([]byte, error) {
	return routerABI.Pack("newAgentFor", user)
}

func PackGetCurrentUserAgent() ([]byte, error) {
	return routerABI.Pack("getCurrentUserAgent")
}

func UnpackCurrentUserAgent(ret []byte) (user common.Address, agent common.Address, err error) {
	out, err := routerABI.Unpack("getCurrentUserAgent", ret)
	if err != nil {
		return user, agent, err
	}
	return out[0].(common.Address), out[1].(common.Address), nil
}

// Pack builds call data for any router method by name.
func Pack(method string, args ...interface{}) ([]byte, error) {
	return routerABI.Pack(method, args...)
}

// Unpack decodes the return data of a router method.
func Unpack(method string, ret []byte) ([]interface{}, error) {
	return routerABI.Unpack(method, ret)
}
