package tracing

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTraceParent(ctx))
}

func TestStartSpan_WithTracer(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	SetTracer(provider.Tracer("test"))
	defer SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "resolve")
	defer span.End()

	assert.Len(t, GetTraceID(ctx), 32)
	assert.Len(t, GetSpanID(ctx), 16)
	assert.Contains(t, GetTraceParent(ctx), GetTraceID(ctx))
}

func TestSetup(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	shutdown, err := Setup(context.Background(), Config{}, logger)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Setup(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, logger)
	assert.ErrorContains(t, err, "unsupported trace exporter")

	shutdown, err = Setup(context.Background(), Config{Enabled: true, ServiceName: "briar"}, logger)
	require.NoError(t, err)
	defer SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "work")
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
