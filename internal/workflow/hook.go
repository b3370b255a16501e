package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"ddgraph/internal/llm"
	"ddgraph/internal/telemetry"
)

// llmSources maps an LLM call phase to the stage whose reasoning trace
// records it.
var llmSources = map[string]string{
	"plan":     StagePlanner,
	"evaluate": StageEvaluate,
	"write":    StageGenerate,
}

// reactHook logs every LLM call of a run as an action step before the
// request and an observation step after it.
type reactHook struct {
	trace *telemetry.Run
}

func hookFor(t *telemetry.Run) llm.PromptHook {
	return reactHook{trace: t}
}

func (h reactHook) Before(_ context.Context, phase, prompt string, _ any) {
	h.trace.Log(sourceFor(phase), telemetry.PhaseAction, "Calling LLM for "+phase, map[string]any{
		"llm_phase":    phase,
		"prompt_bytes": len(prompt),
	})
}

func (h reactHook) After(_ context.Context, phase string, raw json.RawMessage, err error) {
	if err != nil {
		h.trace.Log(sourceFor(phase), telemetry.PhaseObservation, "LLM call failed: "+err.Error(), map[string]any{
			"llm_phase": phase,
			"error":     true,
		})
		return
	}
	h.trace.Log(sourceFor(phase), telemetry.PhaseObservation, fmt.Sprintf("LLM responded with %d bytes.", len(raw)), map[string]any{
		"llm_phase":      phase,
		"response_bytes": len(raw),
	})
}

func sourceFor(phase string) string {
	if s, ok := llmSources[phase]; ok {
		return s
	}
	return "llm"
}
