// Package metrics defines the Prometheus collectors for workflow runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomePending   = "pending"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics holds the workflow collectors. A nil *Metrics records nothing.
type Metrics struct {
	Runs             *prometheus.CounterVec   // by outcome
	StageDuration    *prometheus.HistogramVec // by stage
	Fallbacks        *prometheus.CounterVec   // by stage
	RisksDetected    prometheus.Counter
	PendingApprovals prometheus.Gauge
	LLMCalls         *prometheus.CounterVec // by phase, result
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddgraph_runs_total",
			Help: "Workflow runs by outcome",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddgraph_stage_duration_seconds",
			Help:    "Duration of each workflow stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddgraph_stage_fallbacks_total",
			Help: "Stages that completed with a fallback result",
		}, []string{"stage"}),
		RisksDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ddgraph_risks_detected_total",
			Help: "Runs whose dashboard tripped the risk keyword scan",
		}),
		PendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ddgraph_pending_approvals",
			Help: "Runs currently waiting for a human decision",
		}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddgraph_llm_calls_total",
			Help: "LLM calls by phase and result",
		}, []string{"phase", "result"}),
	}
	reg.MustRegister(m.Runs, m.StageDuration, m.Fallbacks, m.RisksDetected, m.PendingApprovals, m.LLMCalls)
	return m
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) Fallback(stage string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) RunFinished(outcome string, riskDetected bool) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if riskDetected {
		m.RisksDetected.Inc()
	}
}

func (m *Metrics) PendingAdded() {
	if m != nil {
		m.PendingApprovals.Inc()
	}
}

func (m *Metrics) PendingResolved() {
	if m != nil {
		m.PendingApprovals.Dec()
	}
}

// LLMCall matches llm.ObserveFunc.
func (m *Metrics) LLMCall(phase string, err error, _ time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	if phase == "" {
		phase = "unknown"
	}
	m.LLMCalls.WithLabelValues(phase, result).Inc()
}
