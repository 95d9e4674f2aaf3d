package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/node"
)

var (
	runNodeCmd = &cobra.Command{
		Use:   "run",
		Short: "Run router node",
		Long: `Boot the chain from the genesis in the config, deploy the router and serve the API.

Use --config=path-to-your-config-file. default is=./config/router.yaml `,
		RunE: func(cmd *cobra.Command, args []string) error {
			return node.RunWithConfig(config)
		},
	}
)

func init() {
	rootCmd.AddCommand(runNodeCmd)
}
