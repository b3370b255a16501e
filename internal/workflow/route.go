package workflow

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"ddgraph/internal/approval"
)

// Destination is where a dashboard lands under its company folder.
type Destination int

const (
	Primary Destination = iota
	Rejected
	PendingApproval
)

func (d Destination) Dir() string {
	switch d {
	case Rejected:
		return "rejected"
	case PendingApproval:
		return "pending_approval"
	default:
		return ""
	}
}

func (d Destination) String() string {
	if d == Primary {
		return "primary"
	}
	return d.Dir()
}

func (d Destination) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Route picks the destination from the risk flag and approval state only.
func Route(riskDetected bool, status approval.Status) Destination {
	if !riskDetected {
		return Primary
	}
	switch status {
	case approval.Approved:
		return Primary
	case approval.Rejected:
		return Rejected
	default:
		return PendingApproval
	}
}

// SidecarStatus is the status field written next to each dashboard.
func SidecarStatus(riskDetected bool, status approval.Status) string {
	switch Route(riskDetected, status) {
	case Rejected:
		return "rejected"
	case PendingApproval:
		return "pending"
	default:
		return "approved"
	}
}

func DashboardPrefix(companyID string) string {
	return path.Join("dashboards", companyID) + "/"
}

func dashboardKey(companyID string, d Destination, runID, ts string) string {
	return path.Join("dashboards", companyID, d.Dir(), fmt.Sprintf("due_diligence_%s_%s.md", runID, ts))
}

// SidecarKey maps a dashboard key to its metadata key.
func SidecarKey(dashboardKey string) string {
	return strings.TrimSuffix(dashboardKey, ".md") + ".json"
}

func traceKey(companyID, runID, ts string) string {
	return path.Join("workflow_traces", companyID, fmt.Sprintf("trace_%s_%s.json", runID, ts))
}

func pendingKey(companyID, runID string) string {
	return path.Join("pending_state", companyID, runID+".json")
}

func reactKey(companyID, source, runID string) string {
	return path.Join("react_traces", companyID, fmt.Sprintf("%s_%s.json", source, runID))
}

// Sidecar is the metadata written alongside every dashboard.
type Sidecar struct {
	CompanyID       string          `json:"company_id"`
	RunID           string          `json:"run_id"`
	EvaluationScore float64         `json:"evaluation_score"`
	RiskDetected    bool            `json:"risk_detected"`
	HumanApproval   approval.Status `json:"human_approval"`
	Status          string          `json:"status"`
	GeneratedAt     string          `json:"generated_at"`
	Workflow        string          `json:"workflow"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      string          `json:"approved_at,omitempty"`
	RejectedBy      string          `json:"rejected_by,omitempty"`
	RejectedAt      string          `json:"rejected_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// Trace is the per-run audit artifact, written regardless of routing.
type Trace struct {
	CompanyID       string          `json:"company_id"`
	CompanyName     string          `json:"company_name"`
	RunID           string          `json:"run_id"`
	RiskDetected    bool            `json:"risk_detected"`
	EvaluationScore float64         `json:"evaluation_score"`
	BranchTaken     string          `json:"branch_taken"`
	HumanApproval   approval.Status `json:"human_approval"`
	DataSource      string          `json:"data_source"`
	Messages        []Message       `json:"messages"`
	Timestamp       string          `json:"timestamp"`
}

// pendingRecord is the partial run persisted by the async gate.
type pendingRecord struct {
	State        *RunState `json:"state"`
	DashboardKey string    `json:"dashboard_key"`
	SuspendedAt  string    `json:"suspended_at"`
}
