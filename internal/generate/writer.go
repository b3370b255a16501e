package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ddgraph/internal/company"
	"ddgraph/internal/llm"
	"ddgraph/internal/retrieval"
)

var ErrEmptyDashboard = errors.New("generate: empty dashboard")

// Writer turns company data or retrieved context into dashboard markdown
// with an LLM (phase "write").
type Writer struct {
	llm llm.LLMClient
}

func NewWriter(client llm.LLMClient) *Writer {
	if client == nil {
		return nil
	}
	return &Writer{llm: client}
}

const writePrompt = `Write an investor-facing due diligence dashboard in markdown with these sections:
Company Overview, Business Model and GTM, Funding & Investor Profile, Growth Momentum,
Visibility & Market Sentiment, Risks and Challenges, Outlook, Disclosure Gaps.
Use ONLY the input. Where information is missing write "Not disclosed."
Return JSON: {"markdown": "..."}`

type writeInput struct {
	Mode    string            `json:"mode"`
	Company string            `json:"company_name"`
	Record  *company.Company  `json:"record,omitempty"`
	Context []retrieval.Chunk `json:"context,omitempty"`
}

type writeOutput struct {
	Markdown string `json:"markdown"`
}

func (w *Writer) Structured(ctx context.Context, c *company.Company) (string, error) {
	return w.write(ctx, writeInput{Mode: "structured", Company: c.DisplayName(), Record: c})
}

func (w *Writer) FromContext(ctx context.Context, name string, chunks []retrieval.Chunk) (string, error) {
	return w.write(ctx, writeInput{Mode: "rag", Company: name, Context: chunks})
}

func (w *Writer) write(ctx context.Context, in writeInput) (string, error) {
	if w == nil || w.llm == nil {
		return "", fmt.Errorf("generate: no dashboard writer")
	}
	raw, err := w.llm.GenerateJSON(llm.WithPhase(ctx, "write"), writePrompt, in)
	if err != nil {
		return "", err
	}
	var out writeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err)
	}
	md := strings.TrimSpace(out.Markdown)
	if md == "" {
		return "", ErrEmptyDashboard
	}
	return md, nil
}
