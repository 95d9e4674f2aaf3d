package migrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AvaProtocol/ap-router/core/backup"
	"github.com/AvaProtocol/ap-router/pkg/logger"
	"github.com/AvaProtocol/ap-router/storage"
	"github.com/AvaProtocol/ap-router/storage/schema"
)

// MigrationFunc is a function that performs a database migration. The migration functions need to follow this signature
// and return the number of records updated and an error if the migration fails
type MigrationFunc func(db storage.Storage) (int, error)

// Migration represents a database migration function
type Migration struct {
	// Name is recorded in the store once applied. Prefix it with a
	// YYYYMMDD-HHMMSS timestamp so migrations run in creation order.
	Name     string
	Function MigrationFunc
}

// Migrator handles database migrations
type Migrator struct {
	db         storage.Storage
	migrations []Migration
	backup     *backup.Service
	logger     logger.Logger
	mu         sync.Mutex
}

// NewMigrator creates a new migrator instance. backup may be nil, in which
// case no backup is taken before pending migrations run.
func NewMigrator(db storage.Storage, backup *backup.Service, migrations []Migration, log logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: append([]Migration{}, migrations...),
		backup:     backup,
		logger:     logger.EnsureLogger(log),
	}
}

// Register adds a new migration to the list
func (m *Migrator) Register(name string, fn MigrationFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.migrations = append(m.migrations, Migration{Name: name, Function: fn})
}

// Pending lists migrations not applied yet, in name order.
func (m *Migrator) Pending() ([]Migration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending()
}

func (m *Migrator) pending() ([]Migration, error) {
	var out []Migration
	seen := map[string]bool{}
	for _, migration := range m.migrations {
		if seen[migration.Name] {
			continue
		}
		seen[migration.Name] = true

		applied, err := m.db.Exist(schema.MigrationKey(migration.Name))
		if err != nil {
			return nil, fmt.Errorf("check migration %s: %w", migration.Name, err)
		}
		if !applied {
			out = append(out, migration)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Run executes all registered migrations that haven't been run yet
func (m *Migrator) Run(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending, err := m.pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	if m.backup != nil {
		m.logger.Info("pending migrations found, creating database backup before proceeding", "count", len(pending))
		backupFile, err := m.backup.PerformBackup(ctx)
		if err != nil {
			return fmt.Errorf("failed to create backup before migrations: %w", err)
		}
		m.logger.Info("database backup created", "file", backupFile)
	}

	for _, migration := range pending {
		m.logger.Info("running migration", "name", migration.Name)
		recordsUpdated, err := migration.Function(m.db)
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
		m.logger.Info("migration completed", "name", migration.Name, "records", recordsUpdated)

		marker := fmt.Sprintf("records=%d,ts=%d", recordsUpdated, time.Now().UnixMilli())
		if err := m.db.Set(schema.MigrationKey(migration.Name), []byte(marker)); err != nil {
			return fmt.Errorf("failed to mark migration as complete in database: %w", err)
		}
	}

	return nil
}
