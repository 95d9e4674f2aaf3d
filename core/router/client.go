package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/lo"
)

type ExecuteRequest struct {
	Permit2Datas [][]byte
	Logics       []logic.Logic
	TokensReturn []common.Address
	Referral     uint16
}

type SignedExecuteRequest struct {
	Permit2Datas [][]byte
	Batch        logic.LogicBatch
	Signer       common.Address
	Signature    []byte
	TokensReturn []common.Address
	Referral     uint16
}

type Info struct {
	Address            common.Address   `json:"address"`
	Owner              common.Address   `json:"owner"`
	Pauser             common.Address   `json:"pauser"`
	FeeCollector       common.Address   `json:"fee_collector"`
	FeeRate            uint64           `json:"fee_rate"`
	WrappedNative      common.Address   `json:"wrapped_native"`
	Permit2            common.Address   `json:"permit2"`
	ImplementationHash common.Hash      `json:"implementation_hash"`
	Signers            []common.Address `json:"signers"`
	Status             string           `json:"status"`
	CurrentUser        common.Address   `json:"current_user"`
	Agents             int              `json:"agents"`
}

// Client sends transactions to a router deployed on a chain.State and reads
// its state under the chain lock.
type Client struct {
	state   *chain.State
	address common.Address
	router  *Router
}

// Deploy creates a router from cfg at address and returns a client for it.
func Deploy(state *chain.State, address common.Address, cfg Config) (*Client, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := state.Deploy(address, r); err != nil {
		return nil, err
	}
	return &Client{state: state, address: address, router: r}, nil
}

func (c *Client) Address() common.Address { return c.address }
func (c *Client) State() *chain.State     { return c.state }

// Contract exposes the deployed router. Reads on it bypass the chain lock.
func (c *Client) Contract() *Router { return c.router }

func (c *Client) Execute(ctx context.Context, from common.Address, value *big.Int, req ExecuteRequest) (*chain.Receipt, error) {
	data, err := PackExecute(req.Permit2Datas, req.Logics, req.TokensReturn, req.Referral)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}
	return c.send(ctx, from, value, data)
}

func (c *Client) ExecuteWithSignature(ctx context.Context, from common.Address, value *big.Int, req SignedExecuteRequest) (*chain.Receipt, error) {
	data, err := PackExecuteWithSignature(req.Permit2Datas, req.Batch, req.Signer, req.Signature, req.TokensReturn, req.Referral)
	if err != nil {
		return nil, fmt.Errorf("pack executeWithSignature: %w", err)
	}
	return c.send(ctx, from, value, data)
}

func (c *Client) NewAgent(ctx context.Context, from common.Address) (common.Address, *chain.Receipt, error) {
	data, err := PackNewAgent()
	if err != nil {
		return common.Address{}, nil, err
	}
	return c.sendForAddress(ctx, from, "newAgent", data)
}

func (c *Client) NewAgentFor(ctx context.Context, from, user common.Address) (common.Address, *chain.Receipt, error) {
	data, err := PackNewAgentFor(user)
	if err != nil {
		return common.Address{}, nil, err
	}
	return c.sendForAddress(ctx, from, "newAgentFor", data)
}

func (c *Client) Pause(ctx context.Context, from common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "pause")
}

func (c *Client) Unpause(ctx context.Context, from common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "unpause")
}

func (c *Client) AddSigner(ctx context.Context, from, signer common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "addSigner", signer)
}

func (c *Client) RemoveSigner(ctx context.Context, from, signer common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "removeSigner", signer)
}

func (c *Client) SetPauser(ctx context.Context, from, pauser common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "setPauser", pauser)
}

func (c *Client) SetFeeCollector(ctx context.Context, from, feeCollector common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "setFeeCollector", feeCollector)
}

func (c *Client) SetFeeRate(ctx context.Context, from common.Address, feeRate uint64) (*chain.Receipt, error) {
	return c.transact(ctx, from, "setFeeRate", new(big.Int).SetUint64(feeRate))
}

func (c *Client) Rescue(ctx context.Context, from, token, receiver common.Address, amount *big.Int) (*chain.Receipt, error) {
	return c.transact(ctx, from, "rescue", token, receiver, amount)
}

func (c *Client) TransferOwnership(ctx context.Context, from, newOwner common.Address) (*chain.Receipt, error) {
	return c.transact(ctx, from, "transferOwnership", newOwner)
}

// CalcAgent predicts user's agent address.
func (c *Client) CalcAgent(user common.Address) common.Address {
	return c.router.CalcAgent(c.address, user)
}

func (c *Client) GetAgent(user common.Address) common.Address {
	var addr common.Address
	_ = c.state.View(func(*chain.Env) error {
		addr = c.router.GetAgent(user)
		return nil
	})
	return addr
}

func (c *Client) Active() ActiveUser {
	var active ActiveUser
	_ = c.state.View(func(*chain.Env) error {
		active = c.router.Active()
		return nil
	})
	return active
}

func (c *Client) CurrentUser() common.Address {
	return c.Active().Address()
}

func (c *Client) IsSigner(addr common.Address) bool {
	var ok bool
	_ = c.state.View(func(*chain.Env) error {
		ok = c.router.IsSigner(addr)
		return nil
	})
	return ok
}

func (c *Client) Info() Info {
	var info Info
	_ = c.state.View(func(*chain.Env) error {
		r := c.router
		info = Info{
			Address:            c.address,
			Owner:              r.Owner(),
			Pauser:             r.Pauser(),
			FeeCollector:       r.FeeCollector(),
			FeeRate:            r.FeeRate(),
			WrappedNative:      r.WrappedNative(),
			Permit2:            r.Permit2(),
			ImplementationHash: r.ImplementationHash(),
			Signers:            r.Signers(),
			Status:             r.Active().Status().String(),
			CurrentUser:        r.Active().Address(),
			Agents:             len(r.agents),
		}
		return nil
	})
	return info
}

// Agents lists every provisioned (user, agent) pair.
func (c *Client) Agents() map[common.Address]common.Address {
	var out map[common.Address]common.Address
	_ = c.state.View(func(*chain.Env) error {
		out = lo.Assign(c.router.agents)
		return nil
	})
	return out
}

// BatchHash is the digest a signer signs to authorize batch on this router.
func (c *Client) BatchHash(batch logic.LogicBatch) (common.Hash, error) {
	return batch.Hash(c.state.ChainID(), c.address)
}

func (c *Client) transact(ctx context.Context, from common.Address, method string, args ...interface{}) (*chain.Receipt, error) {
	data, err := Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return c.send(ctx, from, nil, data)
}

func (c *Client) sendForAddress(ctx context.Context, from common.Address, method string, data []byte) (common.Address, *chain.Receipt, error) {
	receipt, err := c.send(ctx, from, nil, data)
	if err != nil {
		return common.Address{}, nil, err
	}
	out, err := Unpack(method, receipt.ReturnData)
	if err != nil {
		return common.Address{}, receipt, err
	}
	return out[0].(common.Address), receipt, nil
}

func (c *Client) send(ctx context.Context, from common.Address, value *big.Int, data []byte) (*chain.Receipt, error) {
	return c.state.Send(ctx, chain.Message{From: from, To: c.address, Value: value, Data: data})
}

// ExecuteEvent is the decoded Execute log of a committed batch.
type ExecuteEvent struct {
	User     common.Address
	Agent    common.Address
	Referral uint16
}

// FindExecuteEvent returns the router's Execute event in logs, if any.
func (c *Client) FindExecuteEvent(logs []*types.Log) (*ExecuteEvent, bool) {
	event := routerABI.Events["Execute"]
	for _, l := range logs {
		if l.Address != c.address || len(l.Topics) != 3 || l.Topics[0] != event.ID {
			continue
		}
		out, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(out) != 1 {
			continue
		}
		return &ExecuteEvent{
			User:     common.BytesToAddress(l.Topics[1].Bytes()),
			Agent:    common.BytesToAddress(l.Topics[2].Bytes()),
			Referral: out[0].(uint16),
		}, true
	}
	return nil, false
}

// ChargedAmounts sums the Charged events in logs per token.
func (c *Client) ChargedAmounts(logs []*types.Log) map[common.Address]*big.Int {
	event := routerABI.Events["Charged"]
	charged := map[common.Address]*big.Int{}
	for _, l := range logs {
		if l.Address != c.address || len(l.Topics) != 3 || l.Topics[0] != event.ID {
			continue
		}
		out, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(out) != 2 {
			continue
		}
		token := common.BytesToAddress(l.Topics[1].Bytes())
		amount := out[0].(*big.Int)
		if prev, ok := charged[token]; ok {
			charged[token] = new(big.Int).Add(prev, amount)
		} else {
			charged[token] = new(big.Int).Set(amount)
		}
	}
	return charged
}
