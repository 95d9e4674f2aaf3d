package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/agent"
	nodeconfig "github.com/AvaProtocol/ap-router/core/config"
)

var (
	calcAgentRouter string
	calcAgentHash   string

	calcAgentCmd = &cobra.Command{
		Use:   "calc-agent <user>",
		Short: "Predict the agent address of a user",
		Long: `Compute the address the router assigns to a user's agent, whether or not
the agent exists yet.

The router address and implementation hash come from --router and
--implementation-hash, or from the config file when they are not set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid user address %q", args[0])
			}

			router, hash, err := agentDerivation()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), agent.DeriveAddress(router, common.HexToAddress(args[0]), hash).Hex())
			return nil
		},
	}
)

func agentDerivation() (common.Address, common.Hash, error) {
	router := common.HexToAddress(calcAgentRouter)
	hash := common.HexToHash(calcAgentHash)

	if calcAgentRouter == "" {
		c, err := nodeconfig.NewConfig(config)
		if err != nil {
			return common.Address{}, common.Hash{}, fmt.Errorf("set --router or a valid --config: %w", err)
		}
		router = c.RouterAddress
		if calcAgentHash == "" {
			hash = c.Router.ImplementationHash
		}
	}
	if hash == (common.Hash{}) {
		hash = agent.DefaultImplementationHash
	}
	return router, hash, nil
}

func init() {
	calcAgentCmd.Flags().StringVar(&calcAgentRouter, "router", "", "router address")
	calcAgentCmd.Flags().StringVar(&calcAgentHash, "implementation-hash", "", "agent implementation hash, empty for the default")
	rootCmd.AddCommand(calcAgentCmd)
}
