// Package evaluate scores the structured and RAG dashboards against a fixed
// rubric.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ddgraph/internal/llm"
	"ddgraph/internal/logging"
	"ddgraph/internal/telemetry"
)

const source = "evaluator"

var ErrInvalidEvaluation = errors.New("evaluate: invalid evaluation")

type Evaluator interface {
	Evaluate(ctx context.Context, companyID, structured, rag string) (Result, error)
}

type Service struct {
	llm    llm.LLMClient
	logger *logging.Logger
}

func New(client llm.LLMClient) *Service {
	return &Service{llm: client, logger: logging.GetLogger(source)}
}

const evaluatePrompt = `You are a private equity analyst reviewing two investor dashboards for the same company.
Dashboard "rag" was written from retrieved web context; dashboard "structured" from extracted structured data.

Score each dashboard from 0.0 to 1.0 on:
completeness, accuracy, disclosure, formatting, provenance, hallucination_control.

Return JSON:
{
  "rag": {"completeness": 0.0, "accuracy": 0.0, "disclosure": 0.0, "formatting": 0.0, "provenance": 0.0, "hallucination_control": 0.0},
  "structured": {"completeness": 0.0, "accuracy": 0.0, "disclosure": 0.0, "formatting": 0.0, "provenance": 0.0, "hallucination_control": 0.0},
  "winner": "rag" | "structured" | "tie",
  "overall_assessment": {"strengths": [], "weaknesses": [], "recommendation": ""}
}
Return ONLY JSON.`

type promptInput struct {
	CompanyID           string `json:"company_id"`
	RAGDashboard        string `json:"rag_dashboard"`
	StructuredDashboard string `json:"structured_dashboard"`
}

type evalResponse struct {
	RAG        *Scores `json:"rag"`
	Structured *Scores `json:"structured"`
	Winner     string  `json:"winner"`
	Assessment struct {
		Strengths      []string `json:"strengths"`
		Weaknesses     []string `json:"weaknesses"`
		Recommendation string   `json:"recommendation"`
	} `json:"overall_assessment"`
}

func (s *Service) Evaluate(ctx context.Context, companyID, structured, rag string) (Result, error) {
	if s == nil || s.llm == nil {
		return Result{}, fmt.Errorf("evaluate: no llm client")
	}
	trace := telemetry.FromContext(ctx)
	trace.Log(source, telemetry.PhaseThought, "I need to evaluate two dashboards for "+companyID+" on six criteria.", nil)

	raw, err := s.llm.GenerateJSON(llm.WithPhase(ctx, "evaluate"), evaluatePrompt, promptInput{
		CompanyID:           companyID,
		RAGDashboard:        rag,
		StructuredDashboard: structured,
	})
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: generate: %w", err)
	}
	var resp evalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidEvaluation, err)
	}
	if resp.RAG == nil || resp.Structured == nil {
		return Result{}, fmt.Errorf("%w: missing dashboard scores", ErrInvalidEvaluation)
	}
	winner := strings.ToLower(strings.TrimSpace(resp.Winner))
	trace.Log(source, telemetry.PhaseObservation, "LLM evaluation completed. Winner: "+winner+".", map[string]any{"winner": winner})

	res := Compute(*resp.RAG, *resp.Structured, winner)
	res.Recommendation = strings.TrimSpace(resp.Assessment.Recommendation)
	if res.Recommendation == "" {
		res.Recommendation = "Evaluation completed"
	}
	res.Strengths = nonNil(resp.Assessment.Strengths)
	res.Weaknesses = nonNil(resp.Assessment.Weaknesses)

	trace.Log(source, telemetry.PhaseThought, fmt.Sprintf("Evaluation complete. Final score: %.2f. Winner: %s.", res.Score, res.Winner), map[string]any{"score": res.Score})
	return res, nil
}

// EvaluateOrFallback never fails: any error or panic yields Fallback. The
// cause is returned for logging.
func EvaluateOrFallback(ctx context.Context, e Evaluator, companyID, structured, rag string) (res Result, cause error) {
	defer func() {
		if r := recover(); r != nil {
			res, cause = Fallback(), fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	if e == nil {
		cause = fmt.Errorf("evaluate: not configured")
	} else {
		res, cause = e.Evaluate(ctx, companyID, structured, rag)
		if cause == nil {
			return res, nil
		}
	}
	logging.GetLogger(source).Warn("Using fallback evaluation for %s: %v", companyID, cause)
	return Fallback(), cause
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
