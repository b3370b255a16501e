// Package telemetry keeps per-run reasoning traces (thought, action,
// observation) emitted by the planner and evaluator.
package telemetry

import (
	"context"
	"sync"
	"time"

	"ddgraph/internal/logging"
)

const (
	PhaseThought     = "thought"
	PhaseAction      = "action"
	PhaseObservation = "observation"
)

type Step struct {
	Timestamp string         `json:"timestamp"`
	RunID     string         `json:"run_id"`
	CompanyID string         `json:"company_id"`
	Source    string         `json:"source"`
	Phase     string         `json:"phase"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
}

// Store holds steps per run id until the run is dropped.
type Store struct {
	mu    sync.RWMutex
	steps map[string][]Step
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{steps: make(map[string][]Step), now: time.Now}
}

func (s *Store) Append(step Step) {
	if step.Metadata == nil {
		step.Metadata = map[string]any{}
	}
	if step.Timestamp == "" {
		step.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}
	s.mu.Lock()
	s.steps[step.RunID] = append(s.steps[step.RunID], step)
	s.mu.Unlock()
}

// Read returns the steps for a run. If source is non-empty only that
// source's steps are returned.
func (s *Store) Read(runID, source string) []Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Step, 0, len(s.steps[runID]))
	for _, st := range s.steps[runID] {
		if source == "" || st.Source == source {
			out = append(out, st)
		}
	}
	return out
}

func (s *Store) Drop(runID string) {
	s.mu.Lock()
	delete(s.steps, runID)
	s.mu.Unlock()
}

// Run binds a store to one company run. A nil *Run discards steps.
type Run struct {
	store     *Store
	runID     string
	companyID string
}

func (s *Store) Run(runID, companyID string) *Run {
	if s == nil {
		return nil
	}
	return &Run{store: s, runID: runID, companyID: companyID}
}

func (r *Run) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Log records one step and mirrors it to the logger.
func (r *Run) Log(source, phase, content string, metadata map[string]any) {
	logging.GetLogger(source).Debug("[ReAct %s] %s", phase, content)
	if r == nil {
		return
	}
	r.store.Append(Step{
		RunID:     r.runID,
		CompanyID: r.companyID,
		Source:    source,
		Phase:     phase,
		Content:   content,
		Metadata:  metadata,
	})
}

type ctxKeyRun struct{}

func WithRun(ctx context.Context, r *Run) context.Context {
	return context.WithValue(ctx, ctxKeyRun{}, r)
}

// FromContext returns the bound run, or nil.
func FromContext(ctx context.Context) *Run {
	r, _ := ctx.Value(ctxKeyRun{}).(*Run)
	return r
}
