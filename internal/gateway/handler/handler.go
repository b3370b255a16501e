// Package handler serves the approval and dashboard HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"ddgraph/internal/approval"
	"ddgraph/internal/workflow"
)

// Workflow is the part of workflow.Workflow the API needs.
type Workflow interface {
	Run(ctx context.Context, companyID string) (*workflow.Outcome, error)
	ResumeWithReview(ctx context.Context, companyID, runID string, d approval.Decision, rv workflow.Review) (*workflow.Outcome, error)
	ListPending(ctx context.Context, companyID string) ([]workflow.PendingItem, error)
	LatestDashboard(ctx context.Context, companyID string) (string, []byte, error)
}

type Companies interface {
	CompanyIDs() ([]string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody(msg))
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
