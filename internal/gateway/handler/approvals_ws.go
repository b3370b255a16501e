package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ddgraph/internal/approval"
)

const (
	approvalsWSWriteWait = 10 * time.Second
	approvalsWSPongWait  = 60 * time.Second
	approvalsWSPingEvery = (approvalsWSPongWait * 9) / 10
)

var approvalsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type approvalsWSInbound struct {
	Type       string `json:"type"`
	CompanyID  string `json:"company_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	Action     string `json:"action,omitempty"`
	ApprovedBy string `json:"approved_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type approvalsWSOutbound struct {
	Type      string            `json:"type"`
	CompanyID string            `json:"company_id,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Status    *approval.Status  `json:"status,omitempty"`
	Request   *approval.Request `json:"request,omitempty"`
	Result    map[string]any    `json:"result,omitempty"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

// HandleApprovalsWS streams approval events and accepts decisions over a
// websocket. An optional company_id query parameter filters the stream.
func (h *ApprovalHandler) HandleApprovalsWS(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		http.Error(w, "approval broker is not configured", http.StatusServiceUnavailable)
		return
	}
	filter := strings.TrimSpace(r.URL.Query().Get("company_id"))

	conn, err := approvalsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(approvalsWSPongWait)); err != nil {
		h.logger.Warn("approvals ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(approvalsWSPongWait))
	})

	writeCh := make(chan approvalsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(approvalsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(approvalsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(approvalsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	events := h.broker.Subscribe(ctx)
	pushApprovalsWS(writeCh, approvalsWSOutbound{Type: "subscribed", CompanyID: filter})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if filter != "" && ev.Request.CompanyID != filter {
					continue
				}
				status := ev.Status
				req := ev.Request
				ts := ev.Timestamp
				pushApprovalsWS(writeCh, approvalsWSOutbound{
					Type:      string(ev.Kind),
					CompanyID: req.CompanyID,
					RunID:     req.RunID,
					Status:    &status,
					Request:   &req,
					Timestamp: &ts,
				})
			}
		}
	}()

	for {
		var in approvalsWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch msgType := strings.ToLower(strings.TrimSpace(in.Type)); msgType {
		case "":
			pushApprovalsWS(writeCh, approvalsWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type is required",
			})
		case "ping":
			pushApprovalsWS(writeCh, approvalsWSOutbound{Type: "pong"})
		case "decision":
			code, body := h.decide(ctx, approveRequest{
				CompanyID:  in.CompanyID,
				RunID:      in.RunID,
				Action:     in.Action,
				ApprovedBy: in.ApprovedBy,
				Notes:      in.Notes,
			})
			if code >= http.StatusBadRequest {
				msg, _ := body["error"].(string)
				pushApprovalsWS(writeCh, approvalsWSOutbound{
					Type:      "error",
					CompanyID: in.CompanyID,
					RunID:     in.RunID,
					Code:      errorCode(code),
					Message:   msg,
				})
				continue
			}
			pushApprovalsWS(writeCh, approvalsWSOutbound{
				Type:      "decision_ack",
				CompanyID: in.CompanyID,
				RunID:     in.RunID,
				Result:    body,
			})
		default:
			pushApprovalsWS(writeCh, approvalsWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + msgType,
			})
		}
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

func pushApprovalsWS(writeCh chan approvalsWSOutbound, out approvalsWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
