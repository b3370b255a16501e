package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddgraph/internal/llm"
)

func uniform(v float64) Scores {
	return Scores{v, v, v, v, v, v}
}

func TestRAGWinnerScenario(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Responses["evaluate"] = json.RawMessage(`{
		"rag": {"completeness": 0.95, "accuracy": 0.85, "disclosure": 0.9, "formatting": 0.9, "provenance": 0.9, "hallucination_control": 0.9},
		"structured": {"completeness": 0.6, "accuracy": 0.6, "disclosure": 0.6, "formatting": 0.6, "provenance": 0.6, "hallucination_control": 0.6},
		"winner": "rag",
		"overall_assessment": {"strengths": ["sourced"], "weaknesses": ["thin funding"], "recommendation": "Use RAG"}
	}`)

	res, err := New(fake).Evaluate(context.Background(), "acme", "# S", "# R")
	require.NoError(t, err)

	assert.Equal(t, 0.9, res.Score)
	assert.Equal(t, WinnerRAG, res.Winner)
	assert.Equal(t, Rubric{Completeness: 0.95, Accuracy: 0.85, Disclosure: 0.9, Formatting: 0.9}, res.Rubric)
	assert.Equal(t, 0.9, res.DetailedScores.RAG.Overall)
	assert.Equal(t, 0.6, res.DetailedScores.Structured.Overall)
	require.NotNil(t, res.DetailedScores.RAG.Breakdown)
	assert.Equal(t, 0.95, res.DetailedScores.RAG.Breakdown.Completeness)
	assert.Equal(t, "Use RAG", res.Recommendation)
	assert.Equal(t, []string{"sourced"}, res.Strengths)
	assert.False(t, res.Fallback)
}

func TestComputeScoreIsMaxNotMean(t *testing.T) {
	res := Compute(uniform(0.4), uniform(0.7), WinnerStructured)
	assert.Equal(t, 0.7, res.Score)
	assert.Equal(t, uniform(0.7).Rubric(), res.Rubric)
}

func TestComputeTieAveragesRubric(t *testing.T) {
	rag := Scores{Completeness: 1, Accuracy: 0.5, Disclosure: 0.2, Formatting: 0.8}
	structured := Scores{Completeness: 0.5, Accuracy: 0.5, Disclosure: 0.6, Formatting: 0.4}

	for _, winner := range []string{"tie", "", "both"} {
		res := Compute(rag, structured, winner)
		assert.Equal(t, WinnerTie, res.Winner)
		assert.Equal(t, Rubric{Completeness: 0.75, Accuracy: 0.5, Disclosure: 0.4, Formatting: 0.6}, res.Rubric)
	}
}

func TestComputeRoundsAndClamps(t *testing.T) {
	res := Compute(Scores{Completeness: 1.7, Accuracy: -1, Disclosure: 0.333333}, uniform(0), WinnerRAG)
	assert.Equal(t, 1.0, res.Rubric.Completeness)
	assert.Equal(t, 0.0, res.Rubric.Accuracy)
	assert.Equal(t, 0.33, res.Rubric.Disclosure)
	assert.Equal(t, 0.22, res.Score)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestFallbackShape(t *testing.T) {
	res := Fallback()
	assert.Equal(t, 0.75, res.Score)
	assert.Equal(t, WinnerTie, res.Winner)
	assert.Equal(t, Rubric{Completeness: 0.8, Accuracy: 0.75, Disclosure: 0.7, Formatting: 0.8}, res.Rubric)
	assert.Equal(t, FallbackRecommendation, res.Recommendation)
	assert.Equal(t, 0.75, res.DetailedScores.RAG.Overall)
	assert.Nil(t, res.DetailedScores.RAG.Breakdown)
	assert.True(t, res.Fallback)
}

type panicEvaluator struct{}

func (panicEvaluator) Evaluate(context.Context, string, string, string) (Result, error) {
	panic("boom")
}

type slowClient struct{}

func (slowClient) Name() string { return "slow" }
func (slowClient) Close() error { return nil }
func (slowClient) GenerateJSON(ctx context.Context, _ string, _ any) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEvaluateOrFallbackIsTotal(t *testing.T) {
	failing := llm.NewFakeClient()
	failing.Errors["evaluate"] = errors.New("500")
	malformed := llm.NewFakeClient()
	malformed.Responses["evaluate"] = json.RawMessage(`{"winner": "rag"}`)
	notJSONObject := llm.NewFakeClient()
	notJSONObject.Responses["evaluate"] = json.RawMessage(`[1,2]`)
	timeout := llm.Wrap(slowClient{}, llm.Timeout(10*time.Millisecond))

	cases := map[string]Evaluator{
		"service error":  New(failing),
		"missing scores": New(malformed),
		"wrong shape":    New(notJSONObject),
		"timeout":        New(timeout),
		"panic":          panicEvaluator{},
		"nil":            nil,
	}
	for name, e := range cases {
		res, cause := EvaluateOrFallback(context.Background(), e, "acme", "# S", "# R")
		assert.Error(t, cause, name)
		assert.Equal(t, 0.75, res.Score, name)
		assert.True(t, res.Fallback, name)
	}
}

func TestEvaluateOrFallbackPassesThrough(t *testing.T) {
	res, cause := EvaluateOrFallback(context.Background(), New(llm.NewFakeClient()), "acme", "# S", "# R")
	require.NoError(t, cause)
	assert.Equal(t, 0.8, res.Score)
	assert.Equal(t, WinnerTie, res.Winner)
}
