package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// FileStore persists snapshots as a single JSON file. Writes go to a
// temporary file in the same directory followed by an atomic rename, so a
// crash mid-write leaves the previous snapshot intact.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a FileStore writing to path. The parent directory is
// created on first save if missing.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, snap *ledger.Snapshot) error {
	if snap == nil {
		return errors.New("save snapshot: nil snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	f.logger.Debug("snapshot saved",
		zap.String("path", f.path),
		zap.Uint64("seq", snap.Seq),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context) (*ledger.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	snap := &ledger.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	return snap, nil
}
