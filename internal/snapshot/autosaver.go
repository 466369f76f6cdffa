package snapshot

import (
	"context"
	"time"

	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// ResultFunc is an optional callback for recording save outcomes in metrics.
type ResultFunc func(success bool)

// AutoSaver writes snapshots in the background: after mutations (coalesced)
// and on a periodic interval. Save failures are logged and retried with
// bounded exponential backoff; they never propagate back to the mutation
// that triggered them.
type AutoSaver struct {
	store    Store
	source   func() *ledger.Snapshot
	interval time.Duration
	timeout  time.Duration
	dirty    chan struct{}
	onResult ResultFunc
	logger   *zap.Logger
}

const (
	defaultInterval = time.Minute
	saveTimeout     = 10 * time.Second
	backoffInitial  = time.Second
	backoffMax      = time.Minute
)

// NewAutoSaver creates an AutoSaver that reads state from source and writes
// it to store. interval 0 uses the one-minute default.
func NewAutoSaver(store Store, source func() *ledger.Snapshot, interval time.Duration, logger *zap.Logger) *AutoSaver {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoSaver{
		store:    store,
		source:   source,
		interval: interval,
		timeout:  saveTimeout,
		dirty:    make(chan struct{}, 1),
		logger:   logger,
	}
}

// SetOnResult configures the save-outcome callback. Pass nil to disable.
func (a *AutoSaver) SetOnResult(f ResultFunc) {
	a.onResult = f
}

// Notify marks the state dirty. Non-blocking; multiple notifications before
// the next save coalesce into one write.
func (a *AutoSaver) Notify() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

// Run saves on dirty notifications and on the periodic interval until ctx is
// cancelled, then performs one final save. Call from a dedicated goroutine.
func (a *AutoSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	backoff := backoffInitial
	for {
		select {
		case <-ctx.Done():
			a.save(context.Background())
			return
		case <-a.dirty:
		case <-ticker.C:
		}

		if a.save(ctx) {
			backoff = backoffInitial
			continue
		}

		// Failed save: keep the dirty flag set and back off before the
		// next attempt so a broken backing store is not hammered.
		a.Notify()
		select {
		case <-ctx.Done():
			a.save(context.Background())
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// SaveNow performs one synchronous save, for explicit caller-triggered
// persistence (admin endpoint, shutdown path).
func (a *AutoSaver) SaveNow(ctx context.Context) error {
	snap := a.source()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.store.Save(ctx, snap)
	if a.onResult != nil {
		a.onResult(err == nil)
	}
	if err != nil {
		return err
	}
	a.logger.Debug("snapshot saved", zap.Uint64("seq", snap.Seq))
	return nil
}

func (a *AutoSaver) save(ctx context.Context) bool {
	if err := a.SaveNow(ctx); err != nil {
		a.logger.Warn("snapshot save failed", zap.Error(err))
		return false
	}
	return true
}
