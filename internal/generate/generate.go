// Package generate produces the structured and RAG dashboard drafts for a
// company. Every path ends in non-empty markdown; failures degrade to a
// local generator and finally to a placeholder.
package generate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ddgraph/internal/company"
	"ddgraph/internal/logging"
	"ddgraph/internal/retrieval"
	"ddgraph/internal/risk"
)

const (
	ToolStructured = "generate_structured_dashboard"
	ToolRAG        = "generate_rag_dashboard"

	// RemoteTopK is what the remote RAG tool is asked for; LocalTopK is per
	// canned query.
	RemoteTopK = 10
	LocalTopK  = 3
)

// Source records which path produced a dashboard.
const (
	SourceRemote      = "mcp"
	SourceLLM         = "llm"
	SourceTemplate    = "template"
	SourceStitched    = "stitched"
	SourcePlaceholder = "placeholder"
)

const (
	DataReal = "real"
	DataStub = "stub"
)

// Tool is a remote dashboard generator.
type Tool interface {
	GenerateStructured(ctx context.Context, companyID string) (string, error)
	GenerateRAG(ctx context.Context, companyID string, topK int) (string, error)
}

type Output struct {
	Structured       string
	RAG              string
	StructuredSource string
	RAGSource        string
	Data             company.Overview
	Risks            []risk.Signal
	DataSource       string
}

type Generator struct {
	Tool     Tool
	Writer   *Writer
	Searcher retrieval.Searcher
	// CallTimeout bounds each remote, model or search call. Zero means the
	// caller's context alone.
	CallTimeout time.Duration

	logger *logging.Logger
}

func New(tool Tool, writer *Writer, searcher retrieval.Searcher, callTimeout time.Duration) *Generator {
	return &Generator{
		Tool:        tool,
		Writer:      writer,
		Searcher:    searcher,
		CallTimeout: callTimeout,
		logger:      logging.GetLogger("data_generator"),
	}
}

func (g *Generator) log() *logging.Logger {
	if g.logger == nil {
		g.logger = logging.GetLogger("data_generator")
	}
	return g.logger
}

func (g *Generator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.CallTimeout > 0 {
		return context.WithTimeout(ctx, g.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// Generate always returns both dashboards. c may be nil when the company has
// no data on disk.
func (g *Generator) Generate(ctx context.Context, companyID string, c *company.Company) Output {
	if c == nil {
		g.log().Warn("No payload found for %s, using minimal stub", companyID)
		return Output{
			Structured:       StructuredPlaceholder(companyID, reasonNoPayload),
			RAG:              RAGPlaceholder(companyID, reasonNoPayload),
			StructuredSource: SourcePlaceholder,
			RAGSource:        SourcePlaceholder,
			Data:             company.StubOverview(companyID),
			DataSource:       DataStub,
		}
	}

	name := c.DisplayName()
	out := Output{Data: c.Overview(), Risks: c.RiskSignals(), DataSource: DataReal}

	var eg errgroup.Group
	eg.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				g.log().Error("Structured dashboard panic for %s: %v", companyID, r)
				out.Structured, out.StructuredSource = StructuredPlaceholder(name, reasonStructErr), SourcePlaceholder
			}
		}()
		out.Structured, out.StructuredSource = g.structured(ctx, companyID, c)
		return nil
	})
	eg.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				g.log().Error("RAG dashboard panic for %s: %v", companyID, r)
				out.RAG, out.RAGSource = RAGPlaceholder(name, reasonRAGErr), SourcePlaceholder
			}
		}()
		out.RAG, out.RAGSource = g.rag(ctx, companyID, name)
		return nil
	})
	_ = eg.Wait()

	g.log().Info("Dashboards generated for %s (structured=%s, rag=%s), %d risks found", name, out.StructuredSource, out.RAGSource, len(out.Risks))
	return out
}

func (g *Generator) structured(ctx context.Context, companyID string, c *company.Company) (string, string) {
	if g.Tool != nil {
		cctx, cancel := g.bounded(ctx)
		md, err := g.Tool.GenerateStructured(cctx, companyID)
		cancel()
		if err == nil && md != "" {
			return md, SourceRemote
		}
		g.log().Warn("Remote structured dashboard unavailable for %s: %v", companyID, errOrEmpty(err))
	}
	if g.Writer != nil {
		cctx, cancel := g.bounded(ctx)
		md, err := g.Writer.Structured(cctx, c)
		cancel()
		if err == nil {
			return md, SourceLLM
		}
		g.log().Warn("Local structured dashboard writer failed for %s: %v", companyID, err)
	}
	return TemplateDashboard(c), SourceTemplate
}

// RAGQueries are the canned local retrieval queries.
func RAGQueries(name string) []string {
	return []string{
		name + " company overview mission",
		name + " funding investors",
		name + " business model revenue",
		name + " risks challenges layoffs",
	}
}

func (g *Generator) rag(ctx context.Context, companyID, name string) (string, string) {
	if g.Tool != nil {
		cctx, cancel := g.bounded(ctx)
		md, err := g.Tool.GenerateRAG(cctx, companyID, RemoteTopK)
		cancel()
		if err == nil && md != "" {
			return md, SourceRemote
		}
		g.log().Warn("Remote RAG dashboard unavailable for %s: %v", companyID, errOrEmpty(err))
	}
	return g.localRAG(ctx, companyID, name, LocalTopK)
}

func (g *Generator) localRAG(ctx context.Context, companyID, name string, perQuery int) (string, string) {
	chunks := g.search(ctx, companyID, name, perQuery)
	if len(chunks) == 0 {
		return RAGPlaceholder(name, reasonNoRAG), SourcePlaceholder
	}
	if g.Writer != nil {
		cctx, cancel := g.bounded(ctx)
		md, err := g.Writer.FromContext(cctx, name, chunks)
		cancel()
		if err == nil {
			return md, SourceLLM
		}
		g.log().Warn("RAG dashboard writer failed for %s: %v", companyID, err)
	}
	return StitchRAG(name, chunks), SourceStitched
}

// search runs every canned query; a failing query is logged and skipped.
func (g *Generator) search(ctx context.Context, companyID, name string, perQuery int) []retrieval.Chunk {
	if g.Searcher == nil {
		return nil
	}
	var all []retrieval.Chunk
	for _, q := range RAGQueries(name) {
		cctx, cancel := g.bounded(ctx)
		res, err := g.Searcher.Search(cctx, companyID, q, perQuery)
		cancel()
		if err != nil {
			g.log().Warn("RAG search error for query '%s': %v", q, err)
			continue
		}
		all = append(all, res...)
	}
	return all
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("empty result")
}
