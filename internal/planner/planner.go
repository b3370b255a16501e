// Package planner produces the ordered due-diligence plan for a company.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ddgraph/internal/company"
	"ddgraph/internal/llm"
	"ddgraph/internal/logging"
	"ddgraph/internal/telemetry"
)

const source = "planner"

var ErrInvalidPlan = errors.New("planner: invalid plan")

type Planner interface {
	Plan(ctx context.Context, companyID string) (Plan, error)
}

// CompanySource supplies optional context for the prompt.
type CompanySource interface {
	Load(ctx context.Context, companyID string) (*company.Company, error)
}

type Service struct {
	llm       llm.LLMClient
	companies CompanySource
	logger    *logging.Logger
}

func New(client llm.LLMClient, companies CompanySource) *Service {
	return &Service{llm: client, companies: companies, logger: logging.GetLogger(source)}
}

const planPrompt = `You are a private equity due diligence supervisor. Build an execution plan for the company below.

The plan must cover dashboard generation from structured data, dashboard generation from retrieved context,
evaluation of both dashboards and a risk check (layoffs, security incidents, regulatory issues).

Return JSON:
{
  "reasoning": "why this plan fits",
  "steps": [
    {"step_id": "step_1", "action": "generate_structured_dashboard", "description": "...", "priority": "high", "dependencies": []}
  ],
  "risk_factors": ["areas needing attention"],
  "estimated_duration": "optional"
}

Use these actions: generate_structured_dashboard, generate_rag_dashboard, evaluate_dashboards, check_for_risks.
Return ONLY JSON.`

type promptInput struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Founded   string `json:"founded,omitempty"`
	HasEvents bool   `json:"has_events"`
}

type planResponse struct {
	Reasoning         string   `json:"reasoning"`
	Steps             []Step   `json:"steps"`
	RiskFactors       []string `json:"risk_factors"`
	EstimatedDuration string   `json:"estimated_duration"`
}

func (s *Service) Plan(ctx context.Context, companyID string) (Plan, error) {
	if s == nil || s.llm == nil {
		return Plan{}, fmt.Errorf("planner: no llm client")
	}
	trace := telemetry.FromContext(ctx)
	trace.Log(source, telemetry.PhaseThought, fmt.Sprintf("I need to create a due diligence plan for company: %s.", companyID), nil)

	in := promptInput{CompanyID: companyID}
	if s.companies != nil {
		trace.Log(source, telemetry.PhaseAction, "Retrieving company context for "+companyID, map[string]any{"tool": "get_company_context"})
		c, err := s.companies.Load(ctx, companyID)
		switch {
		case err != nil:
			s.logger.Debug("company context unavailable for %s: %v", companyID, err)
		case c != nil:
			in.Name = c.DisplayName()
			in.Industry = c.Industry
			in.Founded = c.Founded
			in.HasEvents = len(c.Events) > 0
		}
		if in.Name != "" {
			trace.Log(source, telemetry.PhaseObservation, fmt.Sprintf("Retrieved context: %s in %s industry.", in.Name, company.OrDefault(in.Industry, "Unknown")), map[string]any{"has_events": in.HasEvents})
		} else {
			trace.Log(source, telemetry.PhaseObservation, "No company context available. Will create a standard plan.", nil)
		}
	}

	raw, err := s.llm.GenerateJSON(llm.WithPhase(ctx, "plan"), planPrompt, in)
	if err != nil {
		return Plan{}, fmt.Errorf("planner: generate: %w", err)
	}
	var resp planResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	plan, err := normalize(companyID, trace.RunID(), resp)
	if err != nil {
		return Plan{}, err
	}
	trace.Log(source, telemetry.PhaseObservation, fmt.Sprintf("LLM generated plan with %d steps.", len(plan.Steps)), map[string]any{
		"step_count":         len(plan.Steps),
		"risk_factors_count": len(plan.RiskFactors),
	})
	return plan, nil
}

func normalize(companyID, planID string, resp planResponse) (Plan, error) {
	if len(resp.Steps) == 0 {
		return Plan{}, fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	steps := make([]Step, 0, len(resp.Steps))
	for i, st := range resp.Steps {
		st.Action = strings.TrimSpace(st.Action)
		if st.Action == "" {
			return Plan{}, fmt.Errorf("%w: step %d has no action", ErrInvalidPlan, i+1)
		}
		if st.StepID == "" {
			st.StepID = fmt.Sprintf("step_%d", i+1)
		}
		if st.Priority == "" {
			st.Priority = "normal"
		}
		if st.Dependencies == nil {
			st.Dependencies = []string{}
		}
		steps = append(steps, st)
	}
	if resp.RiskFactors == nil {
		resp.RiskFactors = []string{}
	}
	reasoning := strings.TrimSpace(resp.Reasoning)
	if reasoning == "" {
		reasoning = "Plan generated by LLM"
	}
	return Plan{
		CompanyID:         companyID,
		PlanID:            planID,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Reasoning:         reasoning,
		Steps:             steps,
		RiskFactors:       resp.RiskFactors,
		EstimatedDuration: resp.EstimatedDuration,
	}, nil
}

// PlanOrFallback never fails: any error or panic from p yields Fallback.
// The error that caused the fallback is returned for logging.
func PlanOrFallback(ctx context.Context, p Planner, companyID string) (plan Plan, cause error) {
	defer func() {
		if r := recover(); r != nil {
			plan = Fallback(companyID)
			plan.PlanID = telemetry.FromContext(ctx).RunID()
			cause = fmt.Errorf("planner panic: %v", r)
		}
	}()
	if p == nil {
		cause = fmt.Errorf("planner: not configured")
	} else {
		plan, cause = p.Plan(ctx, companyID)
		if cause == nil {
			return plan, nil
		}
	}
	logging.GetLogger(source).Warn("Using fallback plan for %s: %v", companyID, cause)
	plan = Fallback(companyID)
	plan.PlanID = telemetry.FromContext(ctx).RunID()
	return plan, cause
}
