package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	core "ddgraph/internal/app"
	"ddgraph/internal/gateway/app"
	"ddgraph/internal/logging"
	"ddgraph/internal/mcptool"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the approval gateway",
	Long: `Start the HTTP gateway: pending approvals, approve/reject decisions,
a websocket stream of approval events, run triggers, Prometheus metrics and
the dashboard MCP tools.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serveAddr != "" {
			cfg.Port = serveAddr
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		logger := logging.GetLogger("ddgraph")

		errCh := make(chan error, 1)
		go func() { errCh <- a.Start() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case <-ctx.Done():
			logger.Info("Shutting down gateway...")
		case err := <-errCh:
			if err != nil {
				_ = a.Shutdown(context.Background())
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	},
}

var (
	mcpAddr      string
	mcpTransport string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dashboard generation tools over MCP",
	Long: `Expose generate_structured_dashboard and generate_rag_dashboard as MCP
tools backed by the local data directory.

Supports two transports:
  - http: streamable HTTP at /mcp (default)
  - stdio: standard input/output for subprocess clients`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// the tool server never calls itself
		cfg.MCP.URL = ""
		a, release, err := openCore(ctx, core.ApprovalAsync)
		if err != nil {
			return err
		}
		defer release()
		tools := mcptool.NewServer(a.Local, core.Version)
		logger := logging.GetLogger("mcp")

		switch strings.ToLower(mcpTransport) {
		case "stdio":
			return server.ServeStdio(tools.MCPServer())
		case "http":
		default:
			return errors.New("transport must be http or stdio")
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/mcp", tools.Handler("/mcp"))
		srv := &http.Server{Addr: mcpAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Serving MCP tools on %s/mcp", mcpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	mcpCmd.Flags().StringVar(&mcpAddr, "http-addr", ":9000", "HTTP listen address")
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "http", "transport: http or stdio")
}
