package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

// Producer publishes index change events.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}, cfg.Topic, logger)
}

// NewProducerWithWriter wraps an existing writer. The writer's Topic must be empty.
func NewProducerWithWriter(writer *kafka.Writer, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// IndexEvent describes a change made to the secondary indices for one entity.
type IndexEvent struct {
	EventType  string          `json:"event_type"`
	OrgID      string          `json:"org_id"`
	EntityID   string          `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Message builds the Kafka message for an event. Events are keyed by entity id so one
// entity's events stay ordered within a partition.
func (p *Producer) Message(ctx context.Context, event *IndexEvent) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "org_id", Value: []byte(event.OrgID)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}
	InjectTraceContext(ctx, &msg)
	return msg, nil
}

// PublishIndexEvent publishes a single event.
func (p *Producer) PublishIndexEvent(ctx context.Context, event *IndexEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishIndexEvent")
	defer span.End()

	msg, err := p.Message(ctx, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish index event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":  event.EventType,
		"entity_id":   event.EntityID,
		"entity_type": event.EntityType,
	}).Debug("Published index event")
	return nil
}

// PublishIndexEvents publishes multiple events in one write.
func (p *Producer) PublishIndexEvents(ctx context.Context, events []*IndexEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishIndexEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := p.Message(ctx, event)
		if err != nil {
			return err
		}
		messages[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish index events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published index events batch")
	return nil
}
