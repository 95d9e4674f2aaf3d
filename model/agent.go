package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// AgentRecord indexes an agent the node has seen created through the router.
type AgentRecord struct {
	Owner   common.Address `json:"owner"`
	Address common.Address `json:"address"`

	// the account that paid for the creation, differs from Owner for newAgentFor
	CreatedBy common.Address `json:"created_by"`
	TxHash    common.Hash    `json:"tx_hash"`
	// epoch in milliseconds
	CreatedAt int64 `json:"created_at"`
}

func (a *AgentRecord) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

func (a *AgentRecord) FromStorageData(body []byte) error {
	return json.Unmarshal(body, a)
}

type AgentStat struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Failed  uint64 `json:"failed"`
}
