package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer is already running")

// MessageHandler processes one fetched message.  Returning an error leaves
// the message uncommitted so it is redelivered.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fetches messages from one topic and dispatches them to a
// handler, committing offsets only after successful handling.
type Consumer struct {
	reader  ReaderInterface
	handler MessageHandler
	logger  logging.Logger
	topic   string

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer builds a group consumer for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka group id is required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "message handler is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		StartOffset:    startOffset,
		CommitInterval: cfg.CommitInterval,
		MaxWait:        time.Second,
	})
	return &Consumer{reader: reader, handler: handler, logger: logger, topic: topic}, nil
}

// NewConsumerWithReader builds a Consumer over a custom reader, for tests.
func NewConsumerWithReader(reader ReaderInterface, topic string, handler MessageHandler, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{reader: reader, handler: handler, logger: logger, topic: topic}
}

// Start launches the fetch loop.  It returns immediately; the loop runs
// until Close or context cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("kafka consumer started", logging.String("topic", c.topic))
	return nil
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.String("topic", c.topic), logging.Err(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := c.handler(ctx, msg); err != nil {
			c.failed.Add(1)
			c.logger.Error("message handling failed, leaving uncommitted",
				logging.String("topic", c.topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("offset commit failed", logging.String("topic", c.topic), logging.Err(err))
			continue
		}
		c.processed.Add(1)
	}
}

// Processed returns the number of successfully handled messages.
func (c *Consumer) Processed() int64 { return c.processed.Load() }

// Failed returns the number of failed handler invocations.
func (c *Consumer) Failed() int64 { return c.failed.Load() }

// Close stops the loop and releases the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}
