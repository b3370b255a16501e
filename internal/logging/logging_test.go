package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_TIMESTAMP", "ts")
	buf := &bytes.Buffer{}
	SetOutput(buf)
	require.NoError(t, Initialize(level))
	t.Cleanup(func() {
		SetOutput(&bytes.Buffer{})
		_ = Initialize("info")
	})
	return buf
}

func TestLoggerFormatsFieldsSorted(t *testing.T) {
	buf := capture(t, "info")

	GetLogger("workflow").
		WithField("run_id", "run_1").
		InfoWithFields("stage done", Field("stage", "planner"), Field("fallback", true))

	assert.Equal(t, "[ts] [INFO] workflow: stage done | fallback=true run_id=run_1 stage=planner\n", buf.String())
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := capture(t, "warn")
	logger := GetLogger("x")

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] x: shown 1")
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	buf := capture(t, "debug")
	parent := GetLogger("p")
	_ = parent.WithField("k", "v")

	parent.Info("plain")
	assert.False(t, strings.Contains(buf.String(), "k=v"))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, WARN, lvl)

	lvl, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, INFO, lvl)
}

func TestWithContextAddsSpanIDs(t *testing.T) {
	buf := capture(t, "info")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	GetLogger("workflow").WithContext(ctx).WithFields(Field("stage", "planner")).WarnWithFields("fallback")
	GetLogger("workflow").WithContext(context.Background()).Info("no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[ts] [WARN] workflow: fallback | span_id="+sc.SpanID().String()+
		" stage=planner trace_id="+sc.TraceID().String(), lines[0])
	assert.Equal(t, "[ts] [INFO] workflow: no span", lines[1])
}
