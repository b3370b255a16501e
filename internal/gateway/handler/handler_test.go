package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/gateway/handler"
	"ddgraph/internal/gateway/server"
	"ddgraph/internal/generate"
	"ddgraph/internal/storage"
	"ddgraph/internal/workflow"
)

type fixedCompanies map[string]*company.Company

func (f fixedCompanies) Load(_ context.Context, id string) (*company.Company, error) {
	return f[id], nil
}

func (f fixedCompanies) CompanyIDs() ([]string, error) {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids, nil
}

type dashboardTool struct{ structured string }

func (t dashboardTool) GenerateStructured(context.Context, string) (string, error) {
	return t.structured, nil
}

func (t dashboardTool) GenerateRAG(context.Context, string, int) (string, error) {
	return "# Acme rag", nil
}

type fixture struct {
	store  *storage.MemoryStore
	wf     *workflow.Workflow
	broker *approval.Broker
	srv    *httptest.Server
}

func newFixture(t *testing.T, structured string, live bool) *fixture {
	t.Helper()
	companies := fixedCompanies{"acme": {ID: "acme", Name: "Acme", Industry: "Robotics"}}
	f := &fixture{
		store:  storage.NewMemoryStore("mem"),
		broker: approval.NewBroker(0),
	}
	d := workflow.Deps{
		Companies: companies,
		Generator: generate.New(dashboardTool{structured: structured}, nil, nil, 0),
		Store:     f.store,
		Broker:    f.broker,
	}
	if live {
		d.Approver = f.broker
	}
	f.wf = workflow.New(d)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.srv = httptest.NewServer(server.NewMux(server.Routes{
		Approvals:  handler.NewApprovalHandler(f.wf, f.broker),
		Dashboards: handler.NewDashboardHandler(ctx, f.wf, companies),
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

const risky = "# Acme\n\nA data breach was disclosed in March."

func TestHealth(t *testing.T) {
	f := newFixture(t, "# Acme", false)
	code, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestPendingThenApproveResumesFromStorage(t *testing.T) {
	f := newFixture(t, risky, false)
	out, err := f.wf.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, out.Status)

	code, body := f.get(t, "/api/pending-approvals?company_id=acme")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	items := body["pending_approvals"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, out.RunID, first["run_id"])
	assert.Nil(t, first["human_approval"])

	code, body = f.post(t, "/api/approve-dashboard", map[string]any{
		"company_id":  "acme",
		"run_id":      out.RunID,
		"action":      "approve",
		"approved_by": "analyst",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, workflow.StatusCompleted, body["outcome"])
	key := body["dashboard_key"].(string)
	assert.True(t, strings.HasPrefix(key, "dashboards/acme/due_diligence_"+out.RunID))

	_, body = f.get(t, "/api/pending-approvals?company_id=acme")
	assert.EqualValues(t, 0, body["count"])

	code, body = f.get(t, "/api/dashboards/latest?company_id=acme")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, key, body["key"])
	assert.Contains(t, body["markdown"], "- **Human Approval:** Approved")
}

func TestRejectUnknownRunIsNotFound(t *testing.T) {
	f := newFixture(t, risky, false)
	code, body := f.post(t, "/api/approve-dashboard", map[string]any{
		"company_id": "acme",
		"run_id":     "missing",
		"action":     "reject",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestApproveValidatesInput(t *testing.T) {
	f := newFixture(t, risky, false)
	cases := []map[string]any{
		{"company_id": "acme", "action": "approve"},
		{"company_id": "../etc", "run_id": "r", "action": "approve"},
		{"company_id": "acme", "run_id": "r", "action": "maybe"},
	}
	for _, c := range cases {
		code, _ := f.post(t, "/api/approve-dashboard", c)
		assert.Equal(t, http.StatusBadRequest, code, c)
	}
}

func TestLiveDecisionIsDeliveredToWaitingRun(t *testing.T) {
	f := newFixture(t, risky, true)

	type result struct {
		out *workflow.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.wf.Run(context.Background(), "acme")
		done <- result{out, err}
	}()

	var runID string
	require.Eventually(t, func() bool {
		w := f.broker.Waiting()
		if len(w) == 0 {
			return false
		}
		runID = w[0].RunID
		return true
	}, 2*time.Second, 10*time.Millisecond)

	code, body := f.get(t, "/api/pending-approvals")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["waiting"], 1)

	code, body = f.post(t, "/api/approve-dashboard", map[string]any{
		"company_id": "acme",
		"run_id":     runID,
		"action":     "reject",
	})
	require.Equal(t, http.StatusAccepted, code, body)
	assert.Equal(t, "live", body["delivered"])

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, workflow.StatusRejected, res.out.Status)
		assert.Equal(t, workflow.Rejected, res.out.Destination)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not receive the decision")
	}
}

func TestLatestWithoutDashboardIsNotFound(t *testing.T) {
	f := newFixture(t, "# Acme", false)
	code, _ := f.get(t, "/api/dashboards/latest?company_id=acme")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCompaniesAndStartRun(t *testing.T) {
	f := newFixture(t, "# Acme", false)
	code, body := f.get(t, "/api/companies")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"acme"}, body["companies"])

	code, body = f.post(t, "/api/runs", map[string]any{"company_id": "acme"})
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "started", body["status"])

	require.Eventually(t, func() bool {
		code, _ := f.get(t, "/api/dashboards/latest?company_id=acme")
		return code == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	code, _ = f.post(t, "/api/runs", map[string]any{"company_id": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, "# Acme", false)
	resp, err := http.Get(f.srv.URL + "/api/approve-dashboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "# Acme", false)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/approve-dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestApprovalsWebsocketStreamsEventsAndDecisions(t *testing.T) {
	f := newFixture(t, risky, false)
	out, err := f.wf.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, out.Status)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/approvals?company_id=acme"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	read := func() map[string]any {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	assert.Equal(t, "subscribed", read()["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", read()["type"])

	// other companies are filtered out
	f.broker.Publish(approval.EventPending, approval.Request{CompanyID: "other", RunID: "x"}, approval.Pending)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       "decision",
		"company_id": "acme",
		"run_id":     out.RunID,
		"action":     "approve",
	}))

	var sawResolved, sawAck bool
	for i := 0; i < 4 && !(sawResolved && sawAck); i++ {
		msg := read()
		switch msg["type"] {
		case string(approval.EventResolved):
			sawResolved = true
			assert.Equal(t, out.RunID, msg["run_id"])
			assert.Equal(t, true, msg["status"])
		case "decision_ack":
			sawAck = true
			result := msg["result"].(map[string]any)
			assert.Equal(t, "approved", result["status"])
		default:
			assert.NotEqual(t, "other", msg["company_id"])
		}
	}
	assert.True(t, sawResolved)
	assert.True(t, sawAck)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "launch"}))
	msg := read()
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "invalid_argument", msg["code"])
}

func TestApprovalsWebsocketNeedsBroker(t *testing.T) {
	h := handler.NewApprovalHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HandleApprovalsWS(rec, httptest.NewRequest(http.MethodGet, "/ws/approvals", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
