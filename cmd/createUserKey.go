package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/chainio/signer"
	"github.com/AvaProtocol/ap-router/pkg/routerclient"
)

type CreateUserKeyOption struct {
	PrivateKey string
	Node       string
	TTL        time.Duration
}

var userKeyOption = CreateUserKeyOption{}

// createUserKeyCmd represents the create-user-key command
var createUserKeyCmd = &cobra.Command{
	Use:   "create-user-key",
	Short: "Exchange a signature for a user key on a router node",
	Long: `Sign a key request with an ECDSA private key and exchange it for a JWT key
on a running node. The key lets the owner of the private key execute batches
and read its own history.

The private key can also be passed through the PRIVATE_KEY environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userKeyOption.PrivateKey == "" {
			userKeyOption.PrivateKey = os.Getenv("PRIVATE_KEY")
		}
		key, err := signer.ParsePrivateKey(userKeyOption.PrivateKey)
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}

		token, err := routerclient.New(userKeyOption.Node).Authenticate(commandContext(cmd), key, userKeyOption.TTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserKeyCmd)

	createUserKeyCmd.Flags().StringVarP(&(userKeyOption.PrivateKey), "ecdsa-private-key", "k", "", "hex private key of the user")
	createUserKeyCmd.Flags().StringVar(&(userKeyOption.Node), "node", "http://localhost:1323", "router node base url")
	createUserKeyCmd.Flags().DurationVar(&(userKeyOption.TTL), "ttl", time.Hour, "requested key lifetime, capped by the node")
}
