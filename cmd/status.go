package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/history"
	"github.com/AvaProtocol/ap-router/storage"
	"github.com/AvaProtocol/ap-router/storage/schema"
)

var (
	statusDbPath = "./data/badger"

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Display system status",
		Long:  `Display status information about agents, executions and migrations in the database`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📊 System Status Report\n")
			fmt.Fprintf(out, "======================\n\n")
			fmt.Fprintf(out, "💾 Using database path: %s\n\n", statusDbPath)

			// badger allows one process per directory, the node must be stopped
			db, err := storage.NewWithPath(statusDbPath)
			if err != nil {
				fmt.Fprintf(out, "❌ Failed to initialize database: %v\n", err)
				fmt.Fprintf(out, "   💡 Stop the node first, badger holds an exclusive lock\n")
				return
			}
			defer db.Close()

			stats, err := history.NewRepository(db, nil).Stats()
			if err != nil {
				fmt.Fprintf(out, "❌ Failed to read counters: %v\n", err)
				return
			}
			migrations, err := db.ListKeys([]byte(schema.MigrationPrefix))
			if err != nil {
				fmt.Fprintf(out, "❌ Failed to list migrations: %v\n", err)
				return
			}

			fmt.Fprintf(out, "💾 Database Status:\n")
			fmt.Fprintf(out, "   Agents: %d\n", stats.Agents)
			fmt.Fprintf(out, "   Executions: %d (%d failed)\n", stats.Executions, stats.Failures)
			fmt.Fprintf(out, "   Applied migrations: %d\n\n", len(migrations))
			for _, key := range migrations {
				fmt.Fprintf(out, "   - %s\n", strings.TrimPrefix(key, schema.MigrationPrefix))
			}

			fmt.Fprintf(out, "💡 Troubleshooting:\n")
			if stats.Executions == 0 {
				fmt.Fprintf(out, "   ❌ No execution recorded yet\n")
				fmt.Fprintf(out, "   ✅ Submit a batch with POST /execute\n")
			} else {
				fmt.Fprintf(out, "   ✅ %d executions recorded\n", stats.Executions)
			}
			if len(migrations) == 0 {
				fmt.Fprintf(out, "   📝 Start the node once to apply migrations\n")
			}
		},
	}
)

func init() {
	statusCmd.Flags().StringVar(&statusDbPath, "db-path", statusDbPath, "Path to the BadgerDB directory")
	rootCmd.AddCommand(statusCmd)
}
