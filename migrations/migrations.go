package migrations

import (
	"github.com/AvaProtocol/ap-router/core/migrator"
)

// Migrations contains the list of database migrations to be applied
var Migrations = []migrator.Migration{
	{
		// The name of the migration will be recored in our key-value store, and it's sorted lexicographically
		// so we can use the timestamp to sort the migrations in the right order for debugging
		// We should prefix the name with the timestamp in format of YYYYMMDD-HHMMSS
		Name:     "20240601-000000-backfill-counters",
		Function: BackfillCounters,
	},
	// Each migration should be added to this list
}
