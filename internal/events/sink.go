// Package events publishes accepted ledger mutations to external consumers.
// Publishing is fire-and-forget: a failed publish is logged and dropped,
// never blocking or rolling back the mutation it mirrors. The in-store event
// log remains the authoritative audit record.
package events

import (
	"context"

	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// Sink receives a copy of every accepted mutation's event.
type Sink interface {
	Publish(ctx context.Context, ev ledger.Event) error
	Close() error
}

// NoopSink discards events, logging them at debug level. Used when no broker
// is configured.
type NoopSink struct {
	logger *zap.Logger
}

// NewNoopSink creates a NoopSink.
func NewNoopSink(logger *zap.Logger) *NoopSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSink{logger: logger}
}

// Publish implements Sink.
func (s *NoopSink) Publish(_ context.Context, ev ledger.Event) error {
	s.logger.Debug("event sink (noop)",
		zap.Uint64("seq", ev.Seq),
		zap.String("kind", string(ev.Kind)),
	)
	return nil
}

// Close implements Sink.
func (s *NoopSink) Close() error { return nil }
