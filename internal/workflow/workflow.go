package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/evaluate"
	"ddgraph/internal/generate"
	"ddgraph/internal/llm"
	"ddgraph/internal/logging"
	"ddgraph/internal/metrics"
	"ddgraph/internal/planner"
	"ddgraph/internal/risk"
	"ddgraph/internal/storage"
	"ddgraph/internal/telemetry"
)

var (
	// ErrPersist means no backend accepted a finalize write. The run did not
	// complete.
	ErrPersist = errors.New("workflow: persist failed on every backend")
	// ErrNoPendingRun means Resume found no suspended state for the run.
	ErrNoPendingRun = errors.New("workflow: no pending run")
)

type CompanySource interface {
	Load(ctx context.Context, companyID string) (*company.Company, error)
}

// Deps are the collaborators of a Workflow. Store is required; everything
// else degrades to a fallback or a no-op when nil.
type Deps struct {
	Companies CompanySource
	Planner   planner.Planner
	Generator *generate.Generator
	Evaluator evaluate.Evaluator
	// Approver blocks for a decision when a run needs review. Nil means
	// async mode: the run is persisted as pending and execution ends.
	Approver approval.Approver
	// Broker, when set, receives pending and resolved events for runs that
	// did not go through it.
	Broker    *approval.Broker
	Store     storage.Store
	RiskSink  risk.Sink
	Telemetry *telemetry.Store
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	// StageTimeout bounds each stage. Zero leaves stages bounded only by
	// the caller's context and per-call timeouts.
	StageTimeout time.Duration
}

type Workflow struct {
	deps   Deps
	logger *logging.Logger
	now    func() time.Time
	// resuming holds one lock per company/run while a decision is applied.
	resuming runLocks
}

func New(d Deps) *Workflow {
	if d.Generator == nil {
		d.Generator = generate.New(nil, nil, nil, 0)
	}
	if d.RiskSink == nil {
		d.RiskSink = risk.NopSink{}
	}
	if d.Telemetry == nil {
		d.Telemetry = telemetry.NewStore()
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("workflow")
	}
	return &Workflow{deps: d, logger: logging.GetLogger("workflow"), now: time.Now}
}

// run carries the state plus what stages share but never persist.
type run struct {
	state   *RunState
	company *company.Company
	trace   *telemetry.Run
}

type stage struct {
	name string
	exec func(ctx context.Context, r *run) (fallback bool)
}

// Run executes one fresh run for companyID. It returns an error only for
// invalid input or ErrPersist.
func (w *Workflow) Run(ctx context.Context, companyID string) (*Outcome, error) {
	if err := company.ValidID(companyID); err != nil {
		return nil, err
	}
	runID := NewRunID(w.now())
	r := &run{
		state: NewRunState(companyID, runID),
		trace: w.deps.Telemetry.Run(runID, companyID),
	}
	defer w.deps.Telemetry.Drop(runID)
	ctx = telemetry.WithRun(ctx, r.trace)
	ctx = llm.WithHook(ctx, hookFor(r.trace))

	ctx, span := w.deps.Tracer.Start(ctx, WorkflowName, trace.WithAttributes(
		attribute.String("company_id", companyID),
		attribute.String("run_id", runID),
	))
	defer span.End()

	logger := w.logger.WithContext(ctx).WithField("company_id", companyID).WithField("run_id", runID)
	logger.Info("Starting due diligence run")

	r.company = w.loadCompany(ctx, companyID)

	for _, s := range []stage{
		{StagePlanner, w.plan},
		{StageGenerate, w.generate},
		{StageEvaluate, w.evaluate},
		{StageRisk, w.detectRisk},
	} {
		w.runStage(ctx, s, r)
	}

	if r.state.RiskDetected {
		w.runStage(ctx, stage{StageApproval, w.gate}, r)
	} else {
		r.state.HumanApproval = approval.Approved
	}

	var (
		out *Outcome
		err error
	)
	if r.state.HumanApproval.IsPending() {
		out, err = w.suspend(ctx, r)
	} else {
		w.runStage(ctx, stage{StageFinalize, w.finalize}, r)
		out, err = w.persist(ctx, r.state, Review{})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.deps.Metrics.RunFinished(metrics.OutcomeFailed, r.state.RiskDetected)
		logger.Error("Run failed: %v", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("status", out.Status), attribute.Bool("risk_detected", r.state.RiskDetected))
	w.deps.Metrics.RunFinished(out.Status, r.state.RiskDetected)
	logger.InfoWithFields("Run finished",
		logging.Field("status", out.Status), logging.Field("destination", out.Destination.String()))
	return out, nil
}

func (w *Workflow) runStage(ctx context.Context, s stage, r *run) {
	ctx, span := w.deps.Tracer.Start(ctx, s.name)
	defer span.End()
	if w.deps.StageTimeout > 0 && s.name != StageApproval {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deps.StageTimeout)
		defer cancel()
	}
	logger := w.logger.WithContext(ctx).WithFields(
		logging.Field("company_id", r.state.CompanyID),
		logging.Field("run_id", r.state.RunID),
		logging.Field("stage", s.name),
	)
	start := time.Now()
	fallback := s.exec(ctx, r)
	elapsed := time.Since(start)
	w.deps.Metrics.ObserveStage(s.name, elapsed)
	if fallback {
		w.deps.Metrics.Fallback(s.name)
		logger.WarnWithFields("Stage used its fallback", logging.Field("elapsed", elapsed.Round(time.Millisecond)))
	} else {
		logger.DebugWithFields("Stage done", logging.Field("elapsed", elapsed.Round(time.Millisecond)))
	}
	span.SetAttributes(attribute.Bool("fallback", fallback))
}

func (w *Workflow) loadCompany(ctx context.Context, companyID string) *company.Company {
	if w.deps.Companies == nil {
		return nil
	}
	c, err := w.deps.Companies.Load(ctx, companyID)
	if err != nil {
		w.logger.Warn("Could not load company %s: %v", companyID, err)
		return nil
	}
	return c
}

func (w *Workflow) plan(ctx context.Context, r *run) bool {
	p, cause := planner.PlanOrFallback(ctx, w.deps.Planner, r.state.CompanyID)
	r.state.Plan = &p
	payload := map[string]any{"plan": p}
	if cause != nil {
		payload["fallback"] = true
		payload["error"] = cause.Error()
	}
	r.state.AddMessage(StagePlanner, "plan_created", payload)
	w.writeReactTrace(ctx, r, StagePlanner)
	return cause != nil
}

func (w *Workflow) generate(ctx context.Context, r *run) bool {
	out := w.deps.Generator.Generate(ctx, r.state.CompanyID, r.company)
	r.state.StructuredDashboard = out.Structured
	r.state.RAGDashboard = out.RAG
	r.state.DashboardData = out.Data
	for _, sig := range out.Risks {
		w.addRisk(ctx, r.state, sig)
	}
	fallback := out.StructuredSource != generate.SourceRemote || out.RAGSource != generate.SourceRemote
	r.state.AddMessage(StageGenerate, "dashboards_generated", map[string]any{
		"risk_count":        len(out.Risks),
		"data_source":       out.DataSource,
		"structured_source": out.StructuredSource,
		"rag_source":        out.RAGSource,
	})
	return fallback
}

func (w *Workflow) evaluate(ctx context.Context, r *run) bool {
	res, cause := evaluate.EvaluateOrFallback(ctx, w.deps.Evaluator, r.state.CompanyID, r.state.StructuredDashboard, r.state.RAGDashboard)
	r.state.EvaluationResult = &res
	r.state.EvaluationScore = res.Score
	payload := map[string]any{"score": res.Score, "winner": res.Winner}
	if cause != nil {
		payload["fallback"] = true
		payload["error"] = cause.Error()
	}
	r.state.AddMessage(StageEvaluate, "evaluation_completed", payload)
	w.writeReactTrace(ctx, r, StageEvaluate)
	return cause != nil
}

// detectRisk scans only the structured dashboard. Event signals collected
// during generation never set RiskDetected.
func (w *Workflow) detectRisk(ctx context.Context, r *run) bool {
	found, sig := risk.Detect(r.state.StructuredDashboard)
	r.state.RiskDetected = found
	if found {
		w.addRisk(ctx, r.state, *sig)
		w.logger.Warn("Risk keywords found for %s (run %s)", r.state.CompanyID, r.state.RunID)
	}
	r.state.AddMessage(StageRisk, "risk_evaluated", map[string]any{"risk_detected": found})
	return false
}

// gate asks the approver. No approver, an error or a timeout leaves the
// run pending.
func (w *Workflow) gate(ctx context.Context, r *run) bool {
	if w.deps.Approver == nil {
		w.logger.Info("Risk detected for %s; awaiting external approval", r.state.CompanyID)
		return false
	}
	status, err := w.deps.Approver.Decide(ctx, r.state.approvalRequest())
	if err != nil {
		w.logger.Warn("Approval unavailable for %s, suspending run: %v", r.state.CompanyID, err)
		return true
	}
	if status.IsPending() {
		w.logger.Info("No decision for %s (run %s), suspending run", r.state.CompanyID, r.state.RunID)
		return false
	}
	r.state.HumanApproval = status
	r.state.AddMessage(StageApproval, "human_approval", map[string]any{"approved": status == approval.Approved})
	return false
}

func (w *Workflow) finalize(_ context.Context, r *run) bool {
	r.state.FinalDashboard = Render(r.state)
	r.state.AddMessage(StageFinalize, "dashboard_finalized", nil)
	return false
}

func (w *Workflow) addRisk(ctx context.Context, s *RunState, sig risk.Signal) {
	s.AddRisk(sig)
	w.deps.RiskSink.Record(ctx, risk.Entry{CompanyID: s.CompanyID, RunID: s.RunID, Signal: sig})
}

// Review carries the operator details attached to a decision.
type Review struct {
	By    string
	Notes string
}

// persist writes the dashboard, its sidecar and the run trace for a run that
// reached a terminal approval state.
func (w *Workflow) persist(ctx context.Context, s *RunState, rv Review) (*Outcome, error) {
	now := w.now().UTC()
	ts := now.Format(timestampLayout)
	dest := Route(s.RiskDetected, s.HumanApproval)
	key := dashboardKey(s.CompanyID, dest, s.RunID, ts)

	if err := w.put(ctx, key, []byte(s.FinalDashboard), "text/markdown"); err != nil {
		return nil, err
	}
	side := w.sidecar(s, now)
	stampReview(&side, s.HumanApproval, rv, now)
	if err := w.putJSON(ctx, SidecarKey(key), side); err != nil {
		return nil, err
	}
	tk, err := w.writeTrace(ctx, s, now)
	if err != nil {
		return nil, err
	}

	status := StatusCompleted
	if dest == Rejected {
		status = StatusRejected
	}
	w.logger.Info("Dashboard saved to %s", w.deps.Store.URI(key))
	return &Outcome{
		CompanyID:    s.CompanyID,
		RunID:        s.RunID,
		Status:       status,
		Destination:  dest,
		DashboardKey: key,
		TraceKey:     tk,
		State:        s,
	}, nil
}

// suspend persists the draft to pending_approval/ and the partial state for
// a later Resume. FinalDashboard stays empty.
func (w *Workflow) suspend(ctx context.Context, r *run) (*Outcome, error) {
	s := r.state
	now := w.now().UTC()
	key := dashboardKey(s.CompanyID, PendingApproval, s.RunID, now.Format(timestampLayout))

	if err := w.put(ctx, key, []byte(Render(s)), "text/markdown"); err != nil {
		return nil, err
	}
	if err := w.putJSON(ctx, SidecarKey(key), w.sidecar(s, now)); err != nil {
		return nil, err
	}
	pk := pendingKey(s.CompanyID, s.RunID)
	rec := pendingRecord{State: s, DashboardKey: key, SuspendedAt: now.Format(time.RFC3339)}
	if err := w.putJSON(ctx, pk, rec); err != nil {
		return nil, err
	}
	tk, err := w.writeTrace(ctx, s, now)
	if err != nil {
		return nil, err
	}

	w.deps.Metrics.PendingAdded()
	if w.deps.Broker != nil {
		w.deps.Broker.Publish(approval.EventPending, s.approvalRequest(), approval.Pending)
	}
	w.logger.Warn("Risk detected for %s: dashboard saved to %s for approval", s.CompanyID, w.deps.Store.URI(key))
	return &Outcome{
		CompanyID:    s.CompanyID,
		RunID:        s.RunID,
		Status:       StatusPending,
		Destination:  PendingApproval,
		DashboardKey: key,
		TraceKey:     tk,
		PendingKey:   pk,
		State:        s,
	}, nil
}

func (w *Workflow) sidecar(s *RunState, now time.Time) Sidecar {
	return Sidecar{
		CompanyID:       s.CompanyID,
		RunID:           s.RunID,
		EvaluationScore: s.EvaluationScore,
		RiskDetected:    s.RiskDetected,
		HumanApproval:   s.HumanApproval,
		Status:          SidecarStatus(s.RiskDetected, s.HumanApproval),
		GeneratedAt:     now.Format(time.RFC3339),
		Workflow:        WorkflowName,
	}
}

func stampReview(side *Sidecar, status approval.Status, rv Review, now time.Time) {
	if rv == (Review{}) {
		return
	}
	by := rv.By
	if by == "" {
		by = "unknown"
	}
	switch status {
	case approval.Approved:
		side.ApprovedBy, side.ApprovedAt = by, now.Format(time.RFC3339)
	case approval.Rejected:
		side.RejectedBy, side.RejectedAt = by, now.Format(time.RFC3339)
	}
	side.Notes = rv.Notes
}

func (w *Workflow) writeTrace(ctx context.Context, s *RunState, now time.Time) (string, error) {
	key := traceKey(s.CompanyID, s.RunID, now.Format(timestampLayout))
	err := w.putJSON(ctx, key, Trace{
		CompanyID:       s.CompanyID,
		CompanyName:     s.CompanyName(),
		RunID:           s.RunID,
		RiskDetected:    s.RiskDetected,
		EvaluationScore: s.EvaluationScore,
		BranchTaken:     s.BranchTaken(),
		HumanApproval:   s.HumanApproval,
		DataSource:      s.DataSource(),
		Messages:        s.Messages,
		Timestamp:       now.Format(time.RFC3339),
	})
	return key, err
}

// writeReactTrace stores the reasoning steps a stage logged. Failures are
// logged only.
func (w *Workflow) writeReactTrace(ctx context.Context, r *run, source string) {
	steps := w.deps.Telemetry.Read(r.state.RunID, source)
	if len(steps) == 0 {
		return
	}
	key := reactKey(r.state.CompanyID, source, r.state.RunID)
	if err := w.putJSON(ctx, key, steps); err != nil {
		w.logger.Warn("Could not save %s reasoning trace: %v", source, err)
	}
}

func (w *Workflow) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return w.put(ctx, key, data, "application/json")
}

func (w *Workflow) put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := w.deps.Store.Put(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, key, err)
	}
	return nil
}
