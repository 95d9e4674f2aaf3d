package migrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/backup"
	"github.com/AvaProtocol/ap-router/core/testutil"
	"github.com/AvaProtocol/ap-router/storage"
)

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	logger := testutil.GetLogger()
	db := testutil.TestMustDB()
	defer db.Close()

	backupService := backup.NewService(logger, db, t.TempDir())

	migrator := NewMigrator(db, backupService, nil, logger)
	migrator.Register("test_migration", func(db storage.Storage) (int, error) {
		return 5, db.Set([]byte("test:key"), []byte("migrated"))
	})

	require.NoError(t, migrator.Run(ctx))

	marker, err := db.GetKey([]byte("migration:test_migration"))
	require.NoError(t, err, "migration must be marked as complete")
	assert.Contains(t, string(marker), "records=5")
	assert.Contains(t, string(marker), "ts=")

	backups, err := backupService.List()
	require.NoError(t, err)
	assert.Len(t, backups, 1, "a backup is taken before pending migrations")

	calls := 0
	counting := func(db storage.Storage) (int, error) {
		calls++
		return 0, nil
	}

	migrator.Register("test_migration", counting)
	require.NoError(t, migrator.Run(ctx))
	assert.Equal(t, 0, calls, "an applied migration is skipped")

	migrator.Register("second_migration", counting)
	require.NoError(t, migrator.Run(ctx))
	assert.Equal(t, 1, calls, "a new migration runs")

	pending, err := migrator.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigratorRunsInNameOrder(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()

	var order []string
	record := func(name string) MigrationFunc {
		return func(storage.Storage) (int, error) {
			order = append(order, name)
			return 0, nil
		}
	}

	migrator := NewMigrator(db, nil, []Migration{
		{Name: "20240602-000000-b", Function: record("b")},
		{Name: "20240601-000000-a", Function: record("a")},
	}, nil)
	require.NoError(t, migrator.Run(context.Background()))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestMigratorStopsOnFailure(t *testing.T) {
	db := testutil.TestMustDB()
	defer db.Close()

	migrator := NewMigrator(db, nil, []Migration{
		{Name: "20240601-000000-broken", Function: func(storage.Storage) (int, error) {
			return 0, assert.AnError
		}},
	}, nil)
	err := migrator.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)

	exists, err := db.Exist([]byte("migration:20240601-000000-broken"))
	require.NoError(t, err)
	assert.False(t, exists, "a failed migration is retried on the next start")
}
