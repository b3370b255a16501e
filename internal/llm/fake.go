package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// FakeClient returns deterministic JSON per phase for offline runs and tests.
// Responses and Errors override the built-in payloads for a phase.
type FakeClient struct {
	mu        sync.Mutex
	Responses map[string]json.RawMessage
	Errors    map[string]error
	calls     map[string]int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Responses: map[string]json.RawMessage{},
		Errors:    map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Calls reports how many requests were made for a phase.
func (f *FakeClient) Calls(phase string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[phase]
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phase := PhaseFrom(ctx)
	f.mu.Lock()
	f.calls[phase]++
	err := f.Errors[phase]
	resp, ok := f.Responses[phase]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		return resp, nil
	}
	var obj any
	switch phase {
	case "plan":
		obj = map[string]any{
			"reasoning": "fake plan",
			"steps": []map[string]any{
				{"step_id": "step_1", "action": "generate_structured_dashboard", "description": "structured", "priority": "high"},
				{"step_id": "step_2", "action": "generate_rag_dashboard", "description": "rag", "priority": "high"},
				{"step_id": "step_3", "action": "evaluate_dashboards", "description": "evaluate", "dependencies": []string{"step_1", "step_2"}},
				{"step_id": "step_4", "action": "check_for_risks", "description": "risk", "priority": "high", "dependencies": []string{"step_1", "step_2"}},
			},
			"risk_factors": []string{},
		}
	case "evaluate":
		scores := map[string]float64{
			"completeness": 0.8, "accuracy": 0.8, "disclosure": 0.8,
			"formatting": 0.8, "provenance": 0.8, "hallucination_control": 0.8,
		}
		obj = map[string]any{
			"rag":        scores,
			"structured": scores,
			"winner":     "tie",
			"overall_assessment": map[string]any{
				"strengths":      []string{"fake"},
				"weaknesses":     []string{},
				"recommendation": "Approved",
			},
		}
	case "write":
		obj = map[string]any{"markdown": "# Dashboard\n\nNot disclosed."}
	default:
		return nil, fmt.Errorf("fake llm: no payload for phase %q", phase)
	}
	return json.Marshal(obj)
}
