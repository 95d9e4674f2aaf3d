package node

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/chainio/permit2"
	"github.com/AvaProtocol/ap-router/core/chainio/wrappednative"
	"github.com/AvaProtocol/ap-router/core/config"
	"github.com/AvaProtocol/ap-router/core/router"
)

// bootChain creates the ledger the node serves: the wrapped native token,
// permit2, the configured genesis tokens and balances, then the router.
func bootChain(c *config.Config) (*chain.State, *router.Client, []common.Address, error) {
	state := chain.New(c.ChainID, chain.WithLogger(c.Logger))

	if err := state.Deploy(c.WrappedNative, wrappednative.New("Wrapped Ether", "WETH")); err != nil {
		return nil, nil, nil, fmt.Errorf("deploy wrapped native: %w", err)
	}
	if err := state.Deploy(c.Permit2, permit2.New()); err != nil {
		return nil, nil, nil, fmt.Errorf("deploy permit2: %w", err)
	}

	tokens := make([]common.Address, 0, len(c.Genesis.Tokens))
	for _, t := range c.Genesis.Tokens {
		token := erc20.NewToken(t.Name, t.Symbol, t.Decimals, t.Minter)
		for holder, amount := range t.Balances {
			token.SetBalance(holder, amount)
		}
		if err := state.Deploy(t.Address, token); err != nil {
			return nil, nil, nil, fmt.Errorf("deploy token %s: %w", t.Symbol, err)
		}
		tokens = append(tokens, t.Address)
		c.Logger.Info("genesis token deployed", "symbol", t.Symbol, "address", t.Address.Hex(), "holders", len(t.Balances))
	}

	holders := make([]common.Address, 0, len(c.Genesis.Balances))
	for holder := range c.Genesis.Balances {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].Hex() < holders[j].Hex() })
	for _, holder := range holders {
		state.Fund(holder, c.Genesis.Balances[holder])
	}

	pauser := c.Router.Pauser
	if pauser == (common.Address{}) {
		pauser = c.Router.Owner
	}
	client, err := router.Deploy(state, c.RouterAddress, router.Config{
		WrappedNative:      c.WrappedNative,
		Permit2:            c.Permit2,
		Owner:              c.Router.Owner,
		Pauser:             pauser,
		FeeCollector:       c.Router.FeeCollector,
		Signers:            c.Router.Signers,
		FeeRate:            c.Router.FeeRate,
		ImplementationHash: c.Router.ImplementationHash,
		Logger:             c.Logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("deploy router: %w", err)
	}
	c.Logger.Info("router deployed", "address", c.RouterAddress.Hex(), "owner", c.Router.Owner.Hex(), "signers", len(c.Router.Signers), "fee_rate", c.Router.FeeRate)

	return state, client, tokens, nil
}
