package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/veristry/veristry/internal/ledger"
)

// MemoryStore keeps the latest snapshot in process memory. State is lost on
// restart; useful for tests and deployments that accept memory-only
// operation.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store. The snapshot is serialised so later mutations of
// the caller's structures cannot leak into the stored copy.
func (m *MemoryStore) Save(_ context.Context, snap *ledger.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	snap := &ledger.Snapshot{}
	if err := json.Unmarshal(m.data, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Saves returns how many snapshots have been saved. Intended for tests.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
