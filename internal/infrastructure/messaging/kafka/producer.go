package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "kafka producer is closed")

// EventEnvelope is the wire format for every published event.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher is the event-publishing contract the application layer depends
// on.  Publishing is best-effort from the caller's perspective: analytics
// results never fail because an event could not be written.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerMetrics counts publish outcomes.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer writes event envelopes to Kafka.
type Producer struct {
	writer  WriterInterface
	logger  logging.Logger
	closed  atomic.Bool
	metrics ProducerMetrics
}

// NewProducer builds a Producer against the configured brokers.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.ProducerRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &Producer{writer: writer, logger: logger}, nil
}

// NewProducerWithWriter builds a Producer over a custom writer, for tests.
func NewProducerWithWriter(writer WriterInterface, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Producer{writer: writer, logger: logger}
}

// PublishEvent wraps payload in an envelope and writes it to topic.  The
// key routes all events for one aggregate to the same partition.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, payload interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeSerialization, "event payload marshal failed")
	}
	envelope, err := json.Marshal(EventEnvelope{
		EventID:    uuid.NewString(),
		Type:       topic,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	})
	if err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeSerialization, "event envelope marshal failed")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: envelope,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeInternal, "event publish failed")
	}

	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(envelope)))
	return nil
}

// Metrics exposes publish counters.
func (p *Producer) Metrics() *ProducerMetrics {
	return &p.metrics
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
