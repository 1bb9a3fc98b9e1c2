package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

// IncomingMessage is a fetched change event with its parsed Debezium envelope.
type IncomingMessage struct {
	Key       string
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
	Envelope  *DebeziumEnvelope
}

// MessageHandler processes one change event. Returning an error leaves the offset uncommitted.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  Reader
	topic   string
	logger  ectologger.Logger
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return NewConsumerWithReader(reader, cfg.Topic, logger, handler)
}

func NewConsumerWithReader(reader Reader, topic string, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  reader,
		topic:   topic,
		logger:  logger,
		handler: handler,
	}
}

// Start begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.running.Store(true)
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.topic,
	}).Info("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.running.Store(false)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
			continue
		}
		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	ctx = ExtractTraceContext(ctx, &msg)
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	// Log-compaction tombstones follow deletes and carry nothing to index.
	if len(msg.Value) == 0 {
		metrics.ChangeFeedMessages.WithLabelValues("tombstone", "skipped").Inc()
		c.commit(ctx, msg)
		return
	}

	envelope, err := ParseDebeziumMessage(msg.Value)
	if err != nil {
		log.WithError(err).Error("Failed to parse change event")
		metrics.ChangeFeedMessages.WithLabelValues("unknown", "invalid").Inc()
		// Still commit to avoid getting stuck
		c.commit(ctx, msg)
		return
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	incoming := &IncomingMessage{
		Key:       string(msg.Key),
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
		Envelope:  envelope,
	}

	if err := c.handler(ctx, incoming); err != nil {
		// Do NOT commit on processing failure so the change is redelivered.
		log.WithError(err).Error("Failed to process change event (not committing)")
		metrics.ChangeFeedMessages.WithLabelValues(envelope.Payload.Op, "failed").Inc()
		return
	}
	metrics.ChangeFeedMessages.WithLabelValues(envelope.Payload.Op, "ok").Inc()
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("Failed to commit message")
	}
}

// Health reports whether the consume loop is running.
func (c *Consumer) Health() bool {
	return c.running.Load()
}
