package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// SchemaVersion is stamped on every published event.
const SchemaVersion = "1.0"

var propagator = propagation.TraceContext{}

// headerCarrier adapts Kafka message headers to the otel propagation carrier.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext writes traceparent/tracestate headers for the span in ctx.
func InjectTraceContext(ctx context.Context, msg *kafka.Message) {
	propagator.Inject(ctx, headerCarrier{msg: msg})
}

// ExtractTraceContext continues the producer's trace, if the message carries one.
func ExtractTraceContext(ctx context.Context, msg *kafka.Message) context.Context {
	return propagator.Extract(ctx, headerCarrier{msg: msg})
}
