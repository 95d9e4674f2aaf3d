package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	config  = "./config/router.yaml"
	rootCmd = &cobra.Command{
		Use:   "ap-router",
		Short: "Ava Protocol router CLI",
		Long: `Ava Protocol router CLI to run a router node and interact with it.
Each sub command can be use for a single task

Such as "ap-router run" or "ap-router sign-batch" and so on
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&config, "config", "c", "config/router.yaml", "Path to config file")
}

// commandContext is the command's context, or a background one when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
