// Package snapshot persists whole-state ledger snapshots and restores them
// at startup.
//
// Persistence is best-effort replication: a mutation that succeeded in
// memory is never rolled back because a snapshot write failed. Three Store
// implementations are provided:
//   - FileStore: JSON file with atomic replace, for single-node deployments.
//   - PostgresStore: durable, for production use.
//   - MemoryStore: in-process, for testing and memory-only deployments.
package snapshot

import (
	"context"

	"github.com/veristry/veristry/internal/ledger"
)

// Store saves and loads whole-state snapshots.
type Store interface {
	// Save durably writes the snapshot, replacing any previous one.
	Save(ctx context.Context, snap *ledger.Snapshot) error

	// Load returns the most recent snapshot, or (nil, nil) when none has
	// ever been saved.
	Load(ctx context.Context) (*ledger.Snapshot, error)
}
