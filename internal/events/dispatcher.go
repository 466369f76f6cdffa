package events

import (
	"context"
	"time"

	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 256
	publishTimeout   = 5 * time.Second
)

// Dispatcher serializes publication through a single consumer goroutine so
// downstream consumers observe events in enqueue order. Enqueue never blocks
// the mutation that produced the event: when the buffer is full the event is
// dropped with a warning. The in-store event log stays the authoritative
// record either way.
type Dispatcher struct {
	sink   Sink
	queue  chan ledger.Event
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher over sink. buffer <= 0 uses the default
// queue size.
func NewDispatcher(sink Sink, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:   sink,
		queue:  make(chan ledger.Event, buffer),
		logger: logger,
	}
}

// Enqueue queues an event for publication. Non-blocking.
func (d *Dispatcher) Enqueue(ev ledger.Event) {
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("event queue full, dropping event",
			zap.Uint64("seq", ev.Seq),
			zap.String("kind", string(ev.Kind)),
		)
	}
}

// Run publishes queued events one at a time until ctx is cancelled, then
// drains whatever is already buffered before returning. Call from a
// dedicated goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.queue:
			d.publish(ev)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.publish(ev)
		default:
			return
		}
	}
}

// publish uses its own deadline so buffered events still go out during the
// shutdown drain, after the run context is already cancelled.
func (d *Dispatcher) publish(ev ledger.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := d.sink.Publish(ctx, ev); err != nil {
		d.logger.Warn("event publish failed",
			zap.Uint64("seq", ev.Seq),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
