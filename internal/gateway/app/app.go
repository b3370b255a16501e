// Package app assembles the approval gateway: the workflow core plus the
// HTTP, websocket, metrics and MCP surfaces.
package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	core "ddgraph/internal/app"
	"ddgraph/internal/config"
	"ddgraph/internal/gateway/handler"
	"ddgraph/internal/gateway/server"
	"ddgraph/internal/mcptool"
)

const mcpEndpoint = "/mcp"

type App struct {
	Core   *core.App
	server *server.Server
	cancel context.CancelFunc
}

// New builds the gateway. Runs started through it block on the approval
// broker, so decisions posted to the API reach them live.
func New(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := core.New(ctx, cfg, core.Options{Approval: core.ApprovalBroker})
	if err != nil {
		cancel()
		return nil, err
	}

	mux := server.NewMux(server.Routes{
		Approvals:  handler.NewApprovalHandler(c.Workflow, c.Broker),
		Dashboards: handler.NewDashboardHandler(ctx, c.Workflow, c.Companies),
		Metrics:    promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}),
		MCP:        mcptool.NewServer(c.Local, core.Version).Handler(mcpEndpoint),
	})
	return &App{
		Core:   c,
		server: server.New(cfg.Port, mux),
		cancel: cancel,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

// Shutdown stops accepting requests, cancels runs started over HTTP and
// releases the core.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.cancel()
	return errors.Join(err, a.Core.Close(ctx))
}
