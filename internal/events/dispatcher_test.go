package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veristry/veristry/internal/events"
	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// recordingSink captures published events in arrival order.
type recordingSink struct {
	mu   sync.Mutex
	seqs []uint64
}

func (r *recordingSink) Publish(_ context.Context, ev ledger.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs = append(r.seqs, ev.Seq)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) received() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.seqs...)
}

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

func TestDispatcher_preservesEnqueueOrder(t *testing.T) {
	sink := &recordingSink{}
	d := events.NewDispatcher(sink, 64, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	const n = 50
	for seq := uint64(1); seq <= n; seq++ {
		d.Enqueue(ledger.Event{Seq: seq, Kind: ledger.EventIdentityCreated})
	}

	waitFor(t, func() bool { return len(sink.received()) == n })
	cancel()
	<-done

	got := sink.received()
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("event %d: got seq %d, want %d", i, seq, i+1)
		}
	}
}

func TestDispatcher_drainsBufferedEventsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	d := events.NewDispatcher(sink, 8, zap.NewNop())

	// Queue before the consumer starts, then hand it an already-cancelled
	// context: Run must still flush the buffer before returning.
	for seq := uint64(1); seq <= 3; seq++ {
		d.Enqueue(ledger.Event{Seq: seq, Kind: ledger.EventAccessGranted})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	got := sink.received()
	if len(got) != 3 {
		t.Fatalf("drained %d events, want 3", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Errorf("event %d: got seq %d, want %d", i, seq, i+1)
		}
	}
}

func TestDispatcher_dropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{}
	d := events.NewDispatcher(sink, 1, zap.NewNop())

	// No consumer running: the first event fills the buffer, the rest drop.
	for seq := uint64(1); seq <= 3; seq++ {
		d.Enqueue(ledger.Event{Seq: seq, Kind: ledger.EventAccessRevoked})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	got := sink.received()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want just seq 1", got)
	}
}
