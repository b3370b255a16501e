package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/logging"
	"ddgraph/internal/metrics"
	"ddgraph/internal/storage"
)

// Resume applies an operator decision to a suspended run. Approve finalizes
// into the primary location. Reject produces no final dashboard and moves the
// pending draft to rejected/.
func (w *Workflow) Resume(ctx context.Context, companyID, runID string, d approval.Decision) (*Outcome, error) {
	return w.ResumeWithReview(ctx, companyID, runID, d, Review{})
}

// ResumeWithReview is Resume with the reviewer recorded in the sidecar.
// Decisions for the same run are applied one at a time; a decision that
// arrives after another has resolved the run gets ErrNoPendingRun.
func (w *Workflow) ResumeWithReview(ctx context.Context, companyID, runID string, d approval.Decision, rv Review) (*Outcome, error) {
	if err := company.ValidID(companyID); err != nil {
		return nil, err
	}
	status := d.Status()
	if status.IsPending() {
		return nil, fmt.Errorf("workflow: invalid decision %v", d)
	}
	unlock := w.resuming.lock(companyID + "/" + runID)
	defer unlock()
	rec, err := w.loadPending(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}

	s := resumedState(rec.State)
	s.HumanApproval = status
	details := map[string]any{"approved": status == approval.Approved, "resumed": true}
	if rv.By != "" {
		details["reviewer"] = rv.By
	}
	if rv.Notes != "" {
		details["notes"] = rv.Notes
	}
	s.AddMessage(StageApproval, "human_approval", details)

	w.logger.InfoWithFields("Resuming run",
		logging.Field("company_id", companyID), logging.Field("run_id", runID), logging.Field("decision", d.String()))

	var out *Outcome
	if status == approval.Approved {
		s.FinalDashboard = Render(s)
		s.AddMessage(StageFinalize, "dashboard_finalized", nil)
		out, err = w.persist(ctx, s, Review{By: orUnknown(rv.By), Notes: rv.Notes})
		if err != nil {
			w.deps.Metrics.RunFinished(metrics.OutcomeFailed, s.RiskDetected)
			return nil, err
		}
		w.remove(ctx, rec.DashboardKey, SidecarKey(rec.DashboardKey))
	} else {
		out, err = w.archiveRejected(ctx, s, rec.DashboardKey, rv)
		if err != nil {
			w.deps.Metrics.RunFinished(metrics.OutcomeFailed, s.RiskDetected)
			return nil, err
		}
	}
	w.remove(ctx, pendingKey(companyID, runID))

	w.deps.Metrics.PendingResolved()
	w.deps.Metrics.RunFinished(out.Status, s.RiskDetected)
	if w.deps.Broker != nil {
		w.deps.Broker.Publish(approval.EventResolved, s.approvalRequest(), status)
	}
	return out, nil
}

// resumedState copies the persisted partial state into a fresh RunState.
func resumedState(p *RunState) *RunState {
	s := NewRunState(p.CompanyID, p.RunID)
	s.Plan = p.Plan
	s.StructuredDashboard = p.StructuredDashboard
	s.RAGDashboard = p.RAGDashboard
	s.DashboardData = p.DashboardData
	s.EvaluationResult = p.EvaluationResult
	s.EvaluationScore = p.EvaluationScore
	s.RiskDetected = p.RiskDetected
	s.RiskDetails = append(s.RiskDetails, p.RiskDetails...)
	s.Messages = append(s.Messages, p.Messages...)
	return s
}

func (w *Workflow) loadPending(ctx context.Context, companyID, runID string) (*pendingRecord, error) {
	data, err := w.deps.Store.Get(ctx, pendingKey(companyID, runID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPendingRun, companyID, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load pending state: %w", err)
	}
	var rec pendingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode pending state %s/%s: %w", companyID, runID, err)
	}
	if rec.State == nil || rec.State.CompanyID != companyID || rec.State.RunID != runID {
		return nil, fmt.Errorf("%w: %s/%s: state does not match", ErrNoPendingRun, companyID, runID)
	}
	return &rec, nil
}

// archiveRejected moves the pending draft and its sidecar to rejected/ and
// writes the run trace.
func (w *Workflow) archiveRejected(ctx context.Context, s *RunState, draftKey string, rv Review) (*Outcome, error) {
	now := w.now().UTC()
	if draftKey == "" {
		draftKey = dashboardKey(s.CompanyID, PendingApproval, s.RunID, now.Format(timestampLayout))
	}
	key := path.Join(path.Dir(path.Dir(draftKey)), Rejected.Dir(), path.Base(draftKey))

	draft, err := w.deps.Store.Get(ctx, draftKey)
	switch {
	case err == nil:
		if err := w.put(ctx, key, draft, "text/markdown"); err != nil {
			return nil, err
		}
	case errors.Is(err, storage.ErrNotFound):
		w.logger.Warn("Pending draft %s is gone; recording rejection without it", draftKey)
		key = ""
	default:
		return nil, fmt.Errorf("read pending draft: %w", err)
	}

	side := w.sidecar(s, now)
	stampReview(&side, s.HumanApproval, Review{By: orUnknown(rv.By), Notes: rv.Notes}, now)
	sideKey := SidecarKey(key)
	if key == "" {
		sideKey = SidecarKey(dashboardKey(s.CompanyID, Rejected, s.RunID, now.Format(timestampLayout)))
	}
	if err := w.putJSON(ctx, sideKey, side); err != nil {
		return nil, err
	}
	tk, err := w.writeTrace(ctx, s, now)
	if err != nil {
		return nil, err
	}
	w.remove(ctx, draftKey, SidecarKey(draftKey))

	w.logger.Info("Run %s for %s rejected", s.RunID, s.CompanyID)
	return &Outcome{
		CompanyID:    s.CompanyID,
		RunID:        s.RunID,
		Status:       StatusRejected,
		Destination:  Rejected,
		DashboardKey: key,
		TraceKey:     tk,
		State:        s,
	}, nil
}

// remove deletes keys, logging anything other than a missing key.
func (w *Workflow) remove(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := w.deps.Store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			w.logger.Warn("Could not remove %s: %v", k, err)
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
