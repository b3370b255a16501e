package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunFinished(OutcomeCompleted, false)
	m.RunFinished(OutcomePending, true)
	m.Fallback("planner")
	m.ObserveStage("planner", 20*time.Millisecond)
	m.PendingAdded()
	m.PendingAdded()
	m.PendingResolved()
	m.LLMCall("plan", nil, 0)
	m.LLMCall("", errors.New("quota"), 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(OutcomePending)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RisksDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("planner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingApprovals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("plan", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("unknown", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunFinished(OutcomeFailed, true)
		m.Fallback("x")
		m.ObserveStage("x", time.Second)
		m.PendingAdded()
		m.PendingResolved()
		m.LLMCall("x", nil, 0)
	})
}
