package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/logging"
	"ddgraph/internal/workflow"
)

// ApprovalHandler lists pending dashboards and applies decisions. A decision
// for a run blocked on the broker is delivered live; otherwise the suspended
// run is resumed from storage.
type ApprovalHandler struct {
	wf     Workflow
	broker *approval.Broker
	logger *logging.Logger
}

func NewApprovalHandler(wf Workflow, broker *approval.Broker) *ApprovalHandler {
	return &ApprovalHandler{wf: wf, broker: broker, logger: logging.GetLogger("gateway")}
}

type approveRequest struct {
	CompanyID  string `json:"company_id"`
	RunID      string `json:"run_id"`
	Action     string `json:"action"`
	ApprovedBy string `json:"approved_by"`
	Notes      string `json:"notes"`
}

func (h *ApprovalHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID != "" {
		if err := company.ValidID(companyID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	items, err := h.wf.ListPending(r.Context(), companyID)
	if err != nil {
		h.logger.Error("List pending approvals failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	waiting := []approval.Request{}
	if h.broker != nil {
		waiting = append(waiting, h.broker.Waiting()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_approvals": items,
		"count":             len(items),
		"waiting":           waiting,
	})
}

func (h *ApprovalHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in approveRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	code, body := h.decide(r.Context(), in)
	writeJSON(w, code, body)
}

// decide applies one decision and returns the HTTP status and response body.
func (h *ApprovalHandler) decide(ctx context.Context, in approveRequest) (int, map[string]any) {
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.RunID = strings.TrimSpace(in.RunID)
	if in.CompanyID == "" || in.RunID == "" {
		return http.StatusBadRequest, errorBody("company_id and run_id are required")
	}
	if err := company.ValidID(in.CompanyID); err != nil {
		return http.StatusBadRequest, errorBody(err.Error())
	}
	d, err := approval.ParseDecision(in.Action)
	if err != nil {
		return http.StatusBadRequest, errorBody(err.Error())
	}
	status := d.Status().String()

	if h.broker != nil {
		err := h.broker.Submit(in.CompanyID, in.RunID, d)
		if err == nil {
			h.logger.Info("Delivered %s for %s/%s to waiting run", d, in.CompanyID, in.RunID)
			return http.StatusAccepted, map[string]any{
				"status":    status,
				"delivered": "live",
				"message":   fmt.Sprintf("Decision for %s delivered to running workflow", in.CompanyID),
			}
		}
		if !errors.Is(err, approval.ErrNoWaiter) {
			return http.StatusBadRequest, errorBody(err.Error())
		}
	}

	out, err := h.wf.ResumeWithReview(ctx, in.CompanyID, in.RunID, d, workflow.Review{By: strings.TrimSpace(in.ApprovedBy), Notes: in.Notes})
	switch {
	case errors.Is(err, workflow.ErrNoPendingRun):
		return http.StatusNotFound, errorBody(err.Error())
	case err != nil:
		h.logger.Error("Resume %s/%s failed: %v", in.CompanyID, in.RunID, err)
		return http.StatusInternalServerError, errorBody(err.Error())
	}
	return http.StatusOK, map[string]any{
		"status":        status,
		"message":       fmt.Sprintf("Dashboard for %s %s", in.CompanyID, status),
		"outcome":       out.Status,
		"dashboard_key": out.DashboardKey,
		"trace_key":     out.TraceKey,
	}
}
