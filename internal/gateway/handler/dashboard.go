package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ddgraph/internal/company"
	"ddgraph/internal/logging"
	"ddgraph/internal/storage"
	"ddgraph/internal/workflow"
)

// DashboardHandler starts runs and serves persisted dashboards.
type DashboardHandler struct {
	wf        Workflow
	companies Companies
	// baseCtx outlives the request that started a run.
	baseCtx context.Context
	logger  *logging.Logger
}

func NewDashboardHandler(baseCtx context.Context, wf Workflow, companies Companies) *DashboardHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &DashboardHandler{wf: wf, companies: companies, baseCtx: baseCtx, logger: logging.GetLogger("gateway")}
}

func (h *DashboardHandler) HandleCompanies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ids, err := h.companies.CompanyIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": ids, "count": len(ids)})
}

func (h *DashboardHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if err := company.ValidID(companyID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, data, err := h.wf.LatestDashboard(r.Context(), companyID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no approved dashboard for "+companyID)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": companyID,
		"key":        key,
		"markdown":   string(data),
	})
}

type runRequest struct {
	CompanyID string `json:"company_id"`
}

// HandleRun starts a workflow run in the background and returns 202.
// Progress is observable through the approvals websocket and the stored trace.
func (h *DashboardHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in runRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	companyID := strings.TrimSpace(in.CompanyID)
	if err := company.ValidID(companyID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	go func() {
		out, err := h.wf.Run(h.baseCtx, companyID)
		if err != nil {
			h.logger.Error("Run for %s failed: %v", companyID, err)
			return
		}
		h.logger.Info("Run %s for %s finished: %s", out.RunID, companyID, out.Status)
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"company_id": companyID,
		"status":     "started",
		"workflow":   workflow.WorkflowName,
	})
}
