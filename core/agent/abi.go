package agent

import (
	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var AgentMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"execute","stateMutability":"payable","inputs":[{"name":"permit2Datas","type":"bytes[]"},{"name":"logics","type":"tuple[]","components":` + logic.LogicComponentsJSON + `},{"name":"tokensReturn","type":"address[]"}],"outputs":[]},
{"type":"function","name":"executeByCallback","stateMutability":"payable","inputs":[{"name":"logics","type":"tuple[]","components":` + logic.LogicComponentsJSON + `}],"outputs":[]},
{"type":"function","name":"router","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"user","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`,
}

var agentABI = chain.MustParseABI(AgentMetaData.ABI)

func PackInitialize() ([]byte, error) {
	return agentABI.Pack("initialize")
}

func PackExecute(permit2Datas [][]byte, logics []logic.Logic, tokensReturn []common.Address) ([]byte, error) {
	if permit2Datas == nil {
		permit2Datas = [][]byte{}
	}
	if logics == nil {
		logics = []logic.Logic{}
	}
	if tokensReturn == nil {
		tokensReturn = []common.Address{}
	}
	return agentABI.Pack("execute", permit2Datas, logics, tokensReturn)
}

// PackExecuteByCallback builds the call a protocol makes back into the agent
// from inside a logic that armed it as the callback.
func PackExecuteByCallback(logics []logic.Logic) ([]byte, error) {
	if logics == nil {
		logics = []logic.Logic{}
	}
	return agentABI.Pack("executeByCallback", logics)
}
