// Package app builds the workflow and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"ddgraph/internal/approval"
	"ddgraph/internal/company"
	"ddgraph/internal/config"
	"ddgraph/internal/evaluate"
	"ddgraph/internal/generate"
	"ddgraph/internal/llm"
	"ddgraph/internal/logging"
	"ddgraph/internal/mcptool"
	"ddgraph/internal/metrics"
	"ddgraph/internal/planner"
	"ddgraph/internal/retrieval"
	"ddgraph/internal/risk"
	"ddgraph/internal/storage"
	"ddgraph/internal/tracing"
	"ddgraph/internal/workflow"
)

// Version is stamped into traces and the MCP handshake.
var Version = "dev"

// ApprovalMode selects how a risky run is reviewed.
type ApprovalMode int

const (
	// ApprovalFromConfig follows cfg.HITLMode: a terminal prompt in
	// interactive mode, suspension in async mode.
	ApprovalFromConfig ApprovalMode = iota
	// ApprovalBroker blocks runs on the in-process broker so the HTTP API can
	// decide them live.
	ApprovalBroker
	// ApprovalAsync always suspends risky runs as pending.
	ApprovalAsync
)

type Options struct {
	Approval ApprovalMode
}

// App owns every long-lived dependency. Close releases them in reverse
// order of construction.
type App struct {
	Config    *config.Config
	Workflow  *workflow.Workflow
	Companies *company.Loader
	Broker    *approval.Broker
	Store     storage.Store
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Tracing   *tracing.Provider
	// Local is the in-process dashboard tool, also served over MCP.
	Local *generate.Local

	closers []func(context.Context) error
	logger  *logging.Logger
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, logger: logging.GetLogger("app")}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Registry = reg
	a.Metrics = metrics.New(reg)

	tp, err := tracing.New(ctx, cfg.Tracing.Endpoint, Version)
	if err != nil {
		return nil, err
	}
	a.Tracing = tp
	a.onClose(tp.Shutdown)

	if a.Store, err = a.buildStore(); err != nil {
		return nil, err
	}

	if a.Companies, err = company.NewLoader(cfg.DataDir, cfg.Retrieval.CacheSize); err != nil {
		return nil, err
	}

	client, err := llm.New(ctx, cfg.LLM, llm.Options{
		Timeout: cfg.StageTimeout,
		Logger:  logging.Std("llm"),
		Observe: a.Metrics.LLMCall,
	})
	if err != nil {
		a.logger.Warn("LLM client unavailable, stages will use fallbacks: %v", err)
	}

	searcher, err := a.buildSearcher()
	if err != nil {
		return nil, err
	}
	writer := generate.NewWriter(client)
	a.Local = generate.NewLocal(a.Companies, writer, searcher)

	var tool generate.Tool
	if u := strings.TrimSpace(cfg.MCP.URL); u != "" {
		c, err := mcptool.Dial(ctx, u, Version)
		if err != nil {
			a.logger.Warn("MCP server %s unreachable, generating locally: %v", u, err)
		} else {
			tool = c
			a.onClose(func(context.Context) error { return c.Close() })
		}
	}

	var ev evaluate.Evaluator
	var pl planner.Planner
	if client != nil {
		ev = evaluate.New(client)
		pl = planner.New(client, a.Companies)
	}

	a.Broker = approval.NewBroker(cfg.ApprovalTimeout)
	a.Workflow = workflow.New(workflow.Deps{
		Companies:    a.Companies,
		Planner:      pl,
		Generator:    generate.New(tool, writer, searcher, cfg.MCP.Timeout),
		Evaluator:    ev,
		Approver:     a.approver(opts.Approval),
		Broker:       a.Broker,
		Store:        a.Store,
		RiskSink:     a.buildRiskSink(),
		Metrics:      a.Metrics,
		Tracer:       tp.Tracer("workflow"),
		StageTimeout: cfg.StageTimeout,
	})
	ok = true
	return a, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildStore writes locally always and mirrors to object storage when it is
// configured. Either backend accepting a write is enough.
func (a *App) buildStore() (storage.Store, error) {
	cfg := a.Config
	local, err := storage.NewLocalStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	if !cfg.Artifact.Enabled {
		return local, nil
	}
	s3, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	})
	if err != nil {
		a.logger.Warn("Object storage disabled: %v", err)
		return local, nil
	}
	storeLog := logging.GetLogger("storage")
	return &storage.Fallback{
		Primary:   s3,
		Secondary: local,
		OnError: func(backend, op, key string, err error) {
			storeLog.Warn("%s %s %s failed: %v", backend, op, key, err)
		},
	}, nil
}

func (a *App) buildSearcher() (retrieval.Searcher, error) {
	cfg := a.Config.Retrieval
	var base retrieval.Searcher
	switch {
	case strings.TrimSpace(cfg.DSN) != "":
		pg, err := retrieval.NewPostgresSearcher(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("retrieval: %w", err)
		}
		a.onClose(func(context.Context) error { return pg.Close() })
		base = pg
	default:
		dir := cfg.ChunksDir
		if strings.TrimSpace(dir) == "" {
			dir = filepath.Join(a.Config.DataDir, "chunks")
		}
		if _, err := os.Stat(dir); err != nil {
			return retrieval.Nop{}, nil
		}
		base = retrieval.NewFileSearcher(dir)
	}
	return retrieval.NewCached(base, cfg.CacheSize, cfg.CacheTTL), nil
}

func (a *App) buildRiskSink() risk.Sink {
	cfg := a.Config
	sinks := risk.MultiSink{risk.NewFileSink(cfg.DataDir, cfg.Risk.LogPath)}
	if strings.TrimSpace(cfg.Risk.DSN) != "" {
		pg, err := risk.NewPostgresSink(cfg.Risk.DSN)
		if err != nil {
			a.logger.Warn("Risk database unavailable, logging to file only: %v", err)
		} else {
			a.onClose(func(context.Context) error { return pg.Close() })
			sinks = append(sinks, pg)
		}
	}
	return sinks
}

// approver returns nil for async mode, which the workflow treats as suspend.
func (a *App) approver(mode ApprovalMode) approval.Approver {
	switch mode {
	case ApprovalBroker:
		return a.Broker
	case ApprovalAsync:
		return nil
	}
	if a.Config.HITLMode != config.ModeInteractive {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		a.logger.Warn("HITL mode is interactive but stdin is not a terminal, risky runs will be suspended")
		return nil
	}
	return approval.NewTerminalApprover()
}
