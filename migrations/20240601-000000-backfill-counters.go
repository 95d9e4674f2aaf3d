package migrations

import (
	"fmt"

	"github.com/AvaProtocol/ap-router/core/history"
	"github.com/AvaProtocol/ap-router/storage"
)

// BackfillCounters derives the agent and execution counters from the records
// already stored. Nodes that ran before counters were kept start from zero
// otherwise.
func BackfillCounters(db storage.Storage) (int, error) {
	written, err := history.RebuildCounters(db)
	if err != nil {
		return 0, fmt.Errorf("rebuild counters: %w", err)
	}
	return written, nil
}
