package approval

import (
	"context"
	"errors"
)

// Risk is the part of a risk signal shown to an approver.
type Risk struct {
	Type        string `json:"type"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description"`
}

// Request describes a run waiting for a decision.
type Request struct {
	CompanyID       string  `json:"company_id"`
	CompanyName     string  `json:"company_name"`
	RunID           string  `json:"run_id"`
	EvaluationScore float64 `json:"evaluation_score"`
	Risks           []Risk  `json:"risks"`
}

// Approver blocks until an operator decides. Returning Pending means no
// decision arrived (timeout, no operator) and the run must be suspended.
type Approver interface {
	Decide(ctx context.Context, req Request) (Status, error)
}

// ErrNotInteractive is returned when the approver has no operator to ask.
var ErrNotInteractive = errors.New("approval: no interactive operator available")

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req Request) (Status, error)

func (f ApproverFunc) Decide(ctx context.Context, req Request) (Status, error) {
	return f(ctx, req)
}

// Static always returns the same status. Used by batch jobs and tests.
func Static(s Status) Approver {
	return ApproverFunc(func(context.Context, Request) (Status, error) { return s, nil })
}
