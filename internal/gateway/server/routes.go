package server

import (
	"net/http"

	"ddgraph/internal/gateway/handler"
	"ddgraph/internal/gateway/middleware"
)

// Routes collects the handlers mounted on the gateway mux. Nil optional
// handlers leave their route unmounted.
type Routes struct {
	Approvals  *handler.ApprovalHandler
	Dashboards *handler.DashboardHandler
	Metrics    http.Handler
	MCP        http.Handler
}

func NewMux(rt Routes) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.HandleHealth)
	if rt.Approvals != nil {
		mux.HandleFunc("/api/pending-approvals", rt.Approvals.HandlePending)
		mux.HandleFunc("/api/approve-dashboard", rt.Approvals.HandleApprove)
		mux.HandleFunc("/ws/approvals", rt.Approvals.HandleApprovalsWS)
	}
	if rt.Dashboards != nil {
		mux.HandleFunc("/api/companies", rt.Dashboards.HandleCompanies)
		mux.HandleFunc("/api/dashboards/latest", rt.Dashboards.HandleLatest)
		mux.HandleFunc("/api/runs", rt.Dashboards.HandleRun)
	}
	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}
	if rt.MCP != nil {
		mux.Handle("/mcp", rt.MCP)
	}
	return middleware.CORS(mux)
}
