package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/backup"
	"github.com/AvaProtocol/ap-router/storage"
)

var (
	backupDir        string
	periodicInterval int
	backupKeep       int
	dbPath           string
	restoreFile      string
	restoreClean     bool

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Backup BadgerDB data",
		Long: `Backup BadgerDB data to a specified directory.

The backup command can run either as a one-time backup or as a periodic backup process.
Backups are stored in the format: /backup_dir/yy-mm-dd-hh-mm-ss/full-backup.db
Use --db-path to specify the BadgerDB directory to backup.
Use --dir to specify where to store the backups.
Use --interval to enable periodic backups (value in minutes, 0 means one-time backup).
Use --keep to prune older backups after each run (0 keeps everything).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(commandContext(cmd), dbPath, backupDir, periodicInterval)
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "Restore BadgerDB data from backup",
		Long: `Restore BadgerDB data from a backup file.

Use --db-path to specify the BadgerDB directory to restore to.
Use --file to specify the backup file to restore from.
Use --clean to wipe the existing database first instead of merging into it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(commandContext(cmd), dbPath, restoreFile, restoreClean)
		},
	}

	listBackupCmd = &cobra.Command{
		Use:   "list-backups",
		Short: "List backups in a directory, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := backup.NewService(nil, nil, backupDir).List()
			if err != nil {
				return err
			}
			for _, file := range files {
				fmt.Fprintln(cmd.OutOrStdout(), file)
			}
			return nil
		},
	}
)

func runBackup(ctx context.Context, dbPath, backupDir string, intervalMinutes int) error {
	fmt.Printf("Starting BadgerDB backup. DB path: %s, Backup directory: %s\n", dbPath, backupDir)

	db, err := storage.NewWithPath(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	service := backup.NewService(nil, db, backupDir)

	if intervalMinutes == 0 {
		return performBackup(ctx, service)
	}

	fmt.Printf("Setting up periodic backup every %d minutes\n", intervalMinutes)
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	if err := performBackup(ctx, service); err != nil {
		return fmt.Errorf("initial backup failed: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ticker.C:
			if err := performBackup(ctx, service); err != nil {
				fmt.Printf("Periodic backup failed: %v\n", err)
			}
		case <-sigs:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func performBackup(ctx context.Context, service *backup.Service) error {
	file, err := service.PerformBackup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Backup completed successfully to %s\n", file)

	if backupKeep > 0 {
		removed, err := service.Prune(backupKeep)
		if err != nil {
			return err
		}
		if removed > 0 {
			fmt.Printf("Pruned %d old backups\n", removed)
		}
	}
	return nil
}

func runRestore(ctx context.Context, dbPath, restoreFile string, clean bool) error {
	fmt.Printf("Starting BadgerDB restore. DB path: %s, Restore file: %s\n", dbPath, restoreFile)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := storage.NewWithPath(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if clean {
		fmt.Printf("Wiping existing data in %s\n", db.DbPath())
		if err := storage.Destroy(db); err != nil {
			return fmt.Errorf("failed to wipe database: %w", err)
		}
		if db, err = storage.NewWithPath(dbPath); err != nil {
			return fmt.Errorf("failed to reopen database: %w", err)
		}
	}
	defer db.Close()

	if err := backup.NewService(nil, db, "").Restore(ctx, restoreFile); err != nil {
		return err
	}
	fmt.Printf("Restore completed successfully\n")
	return nil
}

func init() {
	backupCmd.Flags().StringVar(&dbPath, "db-path", "", "Path to the BadgerDB directory (required)")
	backupCmd.Flags().StringVar(&backupDir, "dir", "./backup", "Directory to store backups")
	backupCmd.Flags().IntVar(&periodicInterval, "interval", 0, "Run backups periodically (minutes, 0 for one-time)")
	backupCmd.Flags().IntVar(&backupKeep, "keep", 0, "Number of backups to keep")
	backupCmd.MarkFlagRequired("db-path")
	rootCmd.AddCommand(backupCmd)

	restoreCmd.Flags().StringVar(&dbPath, "db-path", "", "Path to the BadgerDB directory (required)")
	restoreCmd.Flags().StringVar(&restoreFile, "file", "", "Backup file to restore from (required)")
	restoreCmd.Flags().BoolVar(&restoreClean, "clean", false, "Wipe the database before restoring")
	restoreCmd.MarkFlagRequired("db-path")
	restoreCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(restoreCmd)

	listBackupCmd.Flags().StringVar(&backupDir, "dir", "./backup", "Directory holding the backups")
	rootCmd.AddCommand(listBackupCmd)
}
