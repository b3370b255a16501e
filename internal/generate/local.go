package generate

import (
	"context"
	"errors"
	"fmt"

	"ddgraph/internal/company"
	"ddgraph/internal/retrieval"
)

var (
	ErrUnknownCompany = errors.New("generate: no data for company")
	ErrNoContext      = errors.New("generate: no retrieval context")
)

type CompanySource interface {
	Load(ctx context.Context, companyID string) (*company.Company, error)
}

// Local implements Tool over local data. It backs the MCP tool server.
type Local struct {
	companies CompanySource
	gen       *Generator
}

func NewLocal(companies CompanySource, writer *Writer, searcher retrieval.Searcher) *Local {
	return &Local{companies: companies, gen: New(nil, writer, searcher, 0)}
}

func (l *Local) load(ctx context.Context, companyID string) (*company.Company, error) {
	c, err := l.companies.Load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompany, companyID)
	}
	return c, nil
}

func (l *Local) GenerateStructured(ctx context.Context, companyID string) (string, error) {
	c, err := l.load(ctx, companyID)
	if err != nil {
		return "", err
	}
	md, _ := l.gen.structured(ctx, companyID, c)
	return md, nil
}

// GenerateRAG spreads topK across the canned queries.
func (l *Local) GenerateRAG(ctx context.Context, companyID string, topK int) (string, error) {
	c, err := l.load(ctx, companyID)
	if err != nil {
		return "", err
	}
	if topK <= 0 {
		topK = RemoteTopK
	}
	n := len(RAGQueries(""))
	perQuery := (topK + n - 1) / n
	md, src := l.gen.localRAG(ctx, companyID, c.DisplayName(), perQuery)
	if src == SourcePlaceholder {
		return "", ErrNoContext
	}
	return md, nil
}
