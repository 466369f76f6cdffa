package snapshot_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veristry/veristry/internal/ledger"
	"github.com/veristry/veristry/internal/snapshot"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestAutoSaver_savesOnNotify(t *testing.T) {
	st := testState(t)
	ms := snapshot.NewMemoryStore()
	saver := snapshot.NewAutoSaver(ms, st.Snapshot, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { saver.Run(ctx); close(done) }()

	saver.Notify()
	waitFor(t, func() bool { return ms.Saves() >= 1 })

	loaded, err := ms.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.Seq != st.Snapshot().Seq {
		t.Errorf("autosaved snapshot stale: %+v", loaded)
	}

	cancel()
	<-done
}

func TestAutoSaver_finalSaveOnShutdown(t *testing.T) {
	st := testState(t)
	ms := snapshot.NewMemoryStore()
	saver := snapshot.NewAutoSaver(ms, st.Snapshot, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { saver.Run(ctx); close(done) }()

	cancel()
	<-done

	if ms.Saves() != 1 {
		t.Errorf("expected exactly the shutdown save, got %d", ms.Saves())
	}
}

// failingStore fails the first n saves, then delegates to a MemoryStore.
type failingStore struct {
	remaining atomic.Int32
	inner     *snapshot.MemoryStore
}

func (f *failingStore) Save(ctx context.Context, snap *ledger.Snapshot) error {
	if f.remaining.Add(-1) >= 0 {
		return errors.New("backing store unavailable")
	}
	return f.inner.Save(ctx, snap)
}

func (f *failingStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	return f.inner.Load(ctx)
}

func TestAutoSaver_retriesAfterFailure(t *testing.T) {
	st := testState(t)
	fs := &failingStore{inner: snapshot.NewMemoryStore()}
	fs.remaining.Store(2)

	var failures atomic.Int32
	saver := snapshot.NewAutoSaver(fs, st.Snapshot, 20*time.Millisecond, zap.NewNop())
	saver.SetOnResult(func(success bool) {
		if !success {
			failures.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { saver.Run(ctx); close(done) }()

	saver.Notify()
	waitFor(t, func() bool { return fs.inner.Saves() >= 1 })

	if failures.Load() < 2 {
		t.Errorf("expected at least 2 failed attempts before success, got %d", failures.Load())
	}

	cancel()
	<-done
}

func TestAutoSaver_saveNow(t *testing.T) {
	st := testState(t)
	ms := snapshot.NewMemoryStore()
	saver := snapshot.NewAutoSaver(ms, st.Snapshot, time.Hour, zap.NewNop())

	if err := saver.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if ms.Saves() != 1 {
		t.Errorf("saves: got %d, want 1", ms.Saves())
	}
}
