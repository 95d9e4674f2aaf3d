package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/pkg/routerclient"
)

var (
	inspectNode string
	inspectKey  string
	inspectMax  int

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Pretty print router state from a running node",
	}

	inspectRouterCmd = &cobra.Command{
		Use:   "router",
		Short: "Print the router configuration and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := inspectClient().RouterInfo(commandContext(cmd))
			if err != nil {
				return err
			}
			return printPretty(cmd, info)
		},
	}

	inspectHistoryCmd = &cobra.Command{
		Use:   "history <user>",
		Short: "Print the latest executions of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid user address %q", args[0])
			}
			executions, err := inspectClient().History(commandContext(cmd), common.HexToAddress(args[0]), inspectMax)
			if err != nil {
				return err
			}
			return printPretty(cmd, executions)
		},
	}

	inspectExecutionCmd = &cobra.Command{
		Use:   "execution <id>",
		Short: "Print one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := inspectClient().Execution(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			return printPretty(cmd, exec)
		},
	}
)

func inspectClient() *routerclient.Client {
	return routerclient.New(inspectNode).SetKey(inspectKey)
}

func printPretty(cmd *cobra.Command, v interface{}) error {
	printer := pp.New()
	printer.SetOutput(cmd.OutOrStdout())
	printer.SetColoringEnabled(false)
	_, err := printer.Println(v)
	return err
}

func init() {
	inspectCmd.PersistentFlags().StringVar(&inspectNode, "node", "http://localhost:1323", "router node base url")
	inspectCmd.PersistentFlags().StringVar(&inspectKey, "key", "", "user or api key")
	inspectHistoryCmd.Flags().IntVar(&inspectMax, "limit", 20, "number of executions to print")

	inspectCmd.AddCommand(inspectRouterCmd, inspectHistoryCmd, inspectExecutionCmd)
	rootCmd.AddCommand(inspectCmd)
}
