package planner

import "time"

// Known step actions. Other actions returned by the planning model are kept
// on the plan but not interpreted by later stages.
const (
	ActionGenerateStructured = "generate_structured_dashboard"
	ActionGenerateRAG        = "generate_rag_dashboard"
	ActionEvaluate           = "evaluate_dashboards"
	ActionCheckRisks         = "check_for_risks"
)

var KnownActions = []string{ActionGenerateStructured, ActionGenerateRAG, ActionEvaluate, ActionCheckRisks}

func IsKnownAction(a string) bool {
	for _, k := range KnownActions {
		if k == a {
			return true
		}
	}
	return false
}

type Step struct {
	StepID       string   `json:"step_id"`
	Action       string   `json:"action"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
}

type Plan struct {
	CompanyID         string   `json:"company_id"`
	PlanID            string   `json:"plan_id,omitempty"`
	Timestamp         string   `json:"timestamp"`
	Reasoning         string   `json:"reasoning"`
	Steps             []Step   `json:"detailed_steps"`
	RiskFactors       []string `json:"risk_factors"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
	Fallback          bool     `json:"fallback,omitempty"`
}

// Actions lists step actions in plan order.
func (p Plan) Actions() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Action)
	}
	return out
}

// Informational returns the actions later stages do not interpret.
func (p Plan) Informational() []string {
	var out []string
	for _, s := range p.Steps {
		if !IsKnownAction(s.Action) {
			out = append(out, s.Action)
		}
	}
	return out
}

const FallbackReasoning = "Fallback plan: LLM generation failed, using standard workflow"

// Fallback is the fixed four-step plan used whenever planning fails.
func Fallback(companyID string) Plan {
	return Plan{
		CompanyID: companyID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reasoning: FallbackReasoning,
		Steps: []Step{
			{StepID: "step_1", Action: ActionGenerateStructured, Description: "Generate dashboard from structured payload", Priority: "high", Dependencies: []string{}},
			{StepID: "step_2", Action: ActionGenerateRAG, Description: "Generate dashboard from RAG search results", Priority: "high", Dependencies: []string{}},
			{StepID: "step_3", Action: ActionEvaluate, Description: "Evaluate dashboard quality", Priority: "normal", Dependencies: []string{"step_1", "step_2"}},
			{StepID: "step_4", Action: ActionCheckRisks, Description: "Check for risk signals", Priority: "high", Dependencies: []string{"step_1", "step_2"}},
		},
		RiskFactors: []string{},
		Fallback:    true,
	}
}
