package workflow

import (
	"fmt"
	"strings"

	"ddgraph/internal/company"
)

const noRisksLine = "_No explicit risk signals detected._"

// Render assembles the final dashboard document from the run state.
func Render(s *RunState) string {
	ov := s.DashboardData.Company
	risky := "No"
	if s.RiskDetected {
		risky = "Yes"
	}

	lines := []string{
		"# Due Diligence Dashboard — " + s.CompanyName(),
		"",
		"- **Company ID:** " + s.CompanyID,
		"- **Industry:** " + company.Or(ov.Industry),
		"- **Website:** " + company.Or(ov.Website),
		"",
		"## 1. Evaluation Summary",
		fmt.Sprintf("- **Evaluation Score:** %.2f", s.EvaluationScore),
		"- **Risk Detected:** " + risky,
		"- **Human Approval:** " + s.HumanApproval.Label(),
		"",
		"## 2. Structured Dashboard",
		s.StructuredDashboard,
		"",
		"## 3. RAG Dashboard",
		s.RAGDashboard,
		"",
		"## 4. Risk Details",
	}
	if len(s.RiskDetails) == 0 {
		lines = append(lines, noRisksLine)
	}
	for i, r := range s.RiskDetails {
		typ := r.Type
		if typ == "" {
			typ = "unknown"
		}
		lines = append(lines, fmt.Sprintf("- **%d. %s** — %s", i+1, typ, r.Description))
	}
	return strings.Join(lines, "\n")
}
