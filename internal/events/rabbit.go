package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// RabbitConfig holds the broker topology for the event sink. Exchange, queue
// and routing key must match whatever downstream consumers declare.
type RabbitConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

// RabbitSink publishes ledger events as persistent JSON messages to a
// RabbitMQ direct exchange.
type RabbitSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     RabbitConfig
	logger  *zap.Logger
}

// NewRabbitSink dials the broker and declares the exchange, queue, and
// binding.
func NewRabbitSink(cfg RabbitConfig, logger *zap.Logger) (*RabbitSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("rabbitmq event sink connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
	)
	return &RabbitSink{conn: conn, channel: ch, cfg: cfg, logger: logger}, nil
}

// Publish implements Sink.
func (s *RabbitSink) Publish(ctx context.Context, ev ledger.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.channel.PublishWithContext(ctx,
		s.cfg.Exchange,
		s.cfg.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%d", ev.Seq),
			Type:         string(ev.Kind),
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %d: %w", ev.Seq, err)
	}
	return nil
}

// Close implements Sink.
func (s *RabbitSink) Close() error {
	s.channel.Close()
	return s.conn.Close()
}
