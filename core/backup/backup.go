package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/AvaProtocol/ap-router/storage"
)

const backupFileName = "full-backup.db"

// Service writes full badger backups into timestamped folders under dir.
// Scheduling is left to the caller.
type Service struct {
	logger logger.Logger
	db     storage.Storage
	dir    string
	now    func() time.Time
}

func NewService(log logger.Logger, db storage.Storage, dir string) *Service {
	return &Service{
		logger: logger.EnsureLogger(log),
		db:     db,
		dir:    dir,
		now:    time.Now,
	}
}

func (s *Service) Dir() string {
	return s.dir
}

// PerformBackup writes a full backup and returns the file it wrote.
func (s *Service) PerformBackup(ctx context.Context) (string, error) {
	backupPath := filepath.Join(s.dir, s.now().UTC().Format("06-01-02-15-04-05"))
	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupFile := filepath.Join(backupPath, backupFileName)
	f, err := os.Create(backupFile)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	s.logger.Info("running backup", "file", backupFile)
	if _, err := s.db.Backup(ctx, f, 0); err != nil {
		return "", fmt.Errorf("backup operation failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush backup file: %w", err)
	}

	return backupFile, nil
}

// Restore loads a backup file produced by PerformBackup into the database.
func (s *Service) Restore(ctx context.Context, backupFile string) error {
	f, err := os.Open(backupFile)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	if err := s.db.Load(ctx, f); err != nil {
		return fmt.Errorf("restore from %s failed: %w", backupFile, err)
	}
	s.logger.Info("restored backup", "file", backupFile)
	return nil
}

// List returns the backup files under dir, oldest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		file := filepath.Join(s.dir, e.Name(), backupFileName)
		if _, err := os.Stat(file); err == nil {
			files = append(files, file)
		}
	}
	// folder names are timestamps, so lexical order is chronological
	sort.Strings(files)
	return files, nil
}

// Prune removes all but the newest keep backups.
func (s *Service) Prune(keep int) (int, error) {
	files, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	removed := 0
	for _, file := range files[:len(files)-keep] {
		if err := os.RemoveAll(filepath.Dir(file)); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", file, err)
		}
		removed++
	}
	s.logger.Info("pruned backups", "removed", removed, "kept", keep)
	return removed, nil
}
