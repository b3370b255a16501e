package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(context.Background(), "", "test")
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer("x").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProviderTracer(t *testing.T) {
	var p *Provider
	_, span := p.Tracer("x").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, p.ForceFlush(context.Background()))
}

func TestExporterReceivesSpans(t *testing.T) {
	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	p, err := NewWithExporter(ctx, exp, "test")
	require.NoError(t, err)

	_, span := p.Tracer("workflow").Start(ctx, "planner")
	span.End()
	require.NoError(t, p.ForceFlush(ctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "planner", spans[0].Name)
	require.NoError(t, p.Shutdown(ctx))
}
