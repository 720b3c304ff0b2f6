package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the subset of *kafka.Reader used here.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// MaxRetries is how many times the handler runs before a message is
	// given up on.
	MaxRetries   int
	RetryBackoff time.Duration
	// EnableDLQ forwards given-up messages to DLQTopic(Topic) before the
	// offset is committed.
	EnableDLQ bool
}

// Consumer reads one topic in a consumer group and commits each offset
// after its handler settles.
type Consumer struct {
	reader    messageReader
	dlq       DeadLetterPublisher
	cfg       ConsumerConfig
	handler   Handler
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a consumer. A DLQ writer is created when cfg.EnableDLQ
// is set.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	var dlq DeadLetterPublisher
	if cfg.EnableDLQ {
		dlq = NewDLQProducer(cfg.Brokers, logger)
	}
	return newConsumer(r, dlq, cfg, handler, logger)
}

func newConsumer(r messageReader, dlq DeadLetterPublisher, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:  r,
		dlq:     dlq,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
}

// Start consumes until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessagesReceived.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()

		if !c.process(ctx, msg) {
			return c.Close()
		}
	}
}

// process handles one message and reports false when ctx ended mid-retry.
// The offset is left uncommitted in that case so the message is redelivered.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := extractTrace(ctx, msg.Headers)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		c.giveUp(msgCtx, msg, err)
		return true
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.handler(msgCtx, event)
		if lastErr == nil {
			break
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
		}
	}
	consumerProcessingDuration.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())

	if lastErr != nil {
		consumerMessagesFailed.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
		c.giveUp(msgCtx, msg, lastErr)
		return true
	}

	consumerMessagesProcessed.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
	c.commit(ctx, msg)
	return true
}

// giveUp dead-letters msg when a DLQ is configured and commits it either way
// so one poison message cannot stall the partition.
func (c *Consumer) giveUp(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq != nil {
		if err := c.dlq.Publish(ctx, msg, cause, c.cfg.GroupID); err == nil {
			consumerDLQPublished.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
		}
	} else {
		c.logger.Error("dropping message after retries",
			slog.Int64("offset", msg.Offset),
			slog.String("error", cause.Error()),
		)
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader and the DLQ writer. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if closer, ok := c.dlq.(interface{ Close() error }); ok {
			if dlqErr := closer.Close(); dlqErr != nil && err == nil {
				err = dlqErr
			}
		}
	})
	return err
}
