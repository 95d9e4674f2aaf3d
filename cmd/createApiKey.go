package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/auth"
	nodeconfig "github.com/AvaProtocol/ap-router/core/config"
)

type CreateApiKeyOption struct {
	Roles []string
	TTL   time.Duration
}

var (
	apiKeyOption = CreateApiKeyOption{}
	createApiKey = &cobra.Command{
		Use:   "create-api-key",
		Short: "Create a long live JWT key to administer a router node",
		Long: `Create a JWT key signed with the node's jwt_secret.

An admin key may call the admin endpoints and act for any user. A readonly
key may read every user's agents and history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := nodeconfig.NewConfig(config)
			if err != nil {
				return err
			}

			roles := make([]auth.ApiRole, len(apiKeyOption.Roles))
			for i, role := range apiKeyOption.Roles {
				roles[i] = auth.ApiRole(role)
			}
			key, err := auth.CreateApiKey(c.JwtSecret, roles, apiKeyOption.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
)

func init() {
	createApiKey.Flags().StringArrayVar(&(apiKeyOption.Roles), "role", []string{string(auth.AdminRole)}, "Role for API Key")
	createApiKey.Flags().DurationVar(&(apiKeyOption.TTL), "ttl", 30*24*time.Hour, "how long the key stays valid")
	rootCmd.AddCommand(createApiKey)
}
