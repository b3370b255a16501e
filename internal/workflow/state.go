// Package workflow drives one due-diligence run for a company: plan,
// generate, evaluate, detect risk, optionally wait for a human, then
// finalize and persist.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/evaluate"
	"ddgraph/internal/planner"
	"ddgraph/internal/risk"
)

// Stage names, also used as message nodes, span names and metric labels.
const (
	StagePlanner  = "planner"
	StageGenerate = "data_generator"
	StageEvaluate = "evaluator"
	StageRisk     = "risk_detector"
	StageApproval = "hitl"
	StageFinalize = "finalize"
)

const (
	WorkflowName    = "due_diligence_graph"
	unknownSource   = "unknown"
	timestampLayout = "20060102_150405"
)

// Message is one entry of the run's audit log.
type Message struct {
	Stage   string         `json:"node"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"details,omitempty"`
}

// RunState is the single mutable record a run threads through its stages.
type RunState struct {
	CompanyID           string           `json:"company_id"`
	RunID               string           `json:"run_id"`
	Plan                *planner.Plan    `json:"plan,omitempty"`
	StructuredDashboard string           `json:"structured_dashboard"`
	RAGDashboard        string           `json:"rag_dashboard"`
	DashboardData       company.Overview `json:"dashboard_data"`
	EvaluationResult    *evaluate.Result `json:"evaluation_result,omitempty"`
	EvaluationScore     float64          `json:"evaluation_score"`
	RiskDetected        bool             `json:"risk_detected"`
	RiskDetails         []risk.Signal    `json:"risk_details"`
	HumanApproval       approval.Status  `json:"human_approval"`
	FinalDashboard      string           `json:"final_dashboard,omitempty"`
	Messages            []Message        `json:"messages"`
}

func NewRunState(companyID, runID string) *RunState {
	return &RunState{
		CompanyID:   companyID,
		RunID:       runID,
		RiskDetails: []risk.Signal{},
		Messages:    []Message{},
	}
}

// NewRunID returns run_{YYYYmmdd_HHMMSS}_{8 hex}.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("run_%s_%s", now.UTC().Format(timestampLayout), suffix)
}

func (s *RunState) AddMessage(stage, action string, payload map[string]any) {
	s.Messages = append(s.Messages, Message{Stage: stage, Action: action, Payload: payload})
}

// AddRisk appends to the accumulated risk details.
func (s *RunState) AddRisk(sig risk.Signal) {
	s.RiskDetails = append(s.RiskDetails, sig)
}

// CompanyName is the overview name, or the id when none was recorded.
func (s *RunState) CompanyName() string {
	if n := strings.TrimSpace(s.DashboardData.Company.Name); n != "" {
		return n
	}
	return s.CompanyID
}

// DataSource reports whether generation ran on real company data, as
// recorded by the data generation message.
func (s *RunState) DataSource() string {
	for _, m := range s.Messages {
		if m.Stage != StageGenerate {
			continue
		}
		if v, ok := m.Payload["data_source"].(string); ok && v != "" {
			return v
		}
	}
	return unknownSource
}

func (s *RunState) BranchTaken() string {
	if s.RiskDetected {
		return "hitl_then_finalize"
	}
	return "direct_to_finalize"
}

func (s *RunState) approvalRequest() approval.Request {
	req := approval.Request{
		CompanyID:       s.CompanyID,
		CompanyName:     s.CompanyName(),
		RunID:           s.RunID,
		EvaluationScore: s.EvaluationScore,
	}
	for _, r := range s.RiskDetails {
		req.Risks = append(req.Risks, approval.Risk{Type: r.Type, Severity: r.Severity, Description: r.Description})
	}
	return req
}

// Outcome statuses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusRejected  = "rejected"
)

// Outcome is what a Run or Resume call produced.
type Outcome struct {
	CompanyID    string      `json:"company_id"`
	RunID        string      `json:"run_id"`
	Status       string      `json:"status"`
	Destination  Destination `json:"destination"`
	DashboardKey string      `json:"dashboard_key,omitempty"`
	TraceKey     string      `json:"trace_key,omitempty"`
	PendingKey   string      `json:"pending_key,omitempty"`
	State        *RunState   `json:"-"`
}
