package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// PostgresStore persists the whole-state snapshot as a single JSONB row.
// The single-row layout matches the snapshot contract: whole-state replace,
// no per-entity or delta writes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Init creates the snapshot table if it does not exist.
func (p *PostgresStore) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			id        smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			saved_at  timestamptz NOT NULL,
			seq       bigint NOT NULL,
			state     jsonb NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

// Save implements Store.
func (p *PostgresStore) Save(ctx context.Context, snap *ledger.Snapshot) error {
	if snap == nil {
		return errors.New("save snapshot: nil snapshot")
	}
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := p.pool.Exec(ctx, `
		INSERT INTO ledger_snapshots (id, saved_at, seq, state)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET saved_at = EXCLUDED.saved_at, seq = EXCLUDED.seq, state = EXCLUDED.state`,
		time.Now().UTC(), snap.Seq, state,
	); err != nil {
		return fmt.Errorf("write snapshot row: %w", err)
	}

	p.logger.Debug("snapshot saved to postgres",
		zap.Uint64("seq", snap.Seq),
		zap.Int("bytes", len(state)),
	)
	return nil
}

// Load implements Store.
func (p *PostgresStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var state []byte
	err := p.pool.QueryRow(ctx,
		"SELECT state FROM ledger_snapshots WHERE id = 1",
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot row: %w", err)
	}

	snap := &ledger.Snapshot{}
	if err := json.Unmarshal(state, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot row: %w", err)
	}
	return snap, nil
}
