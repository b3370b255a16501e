package evaluate

import (
	"math"
	"time"
)

const (
	WinnerRAG        = "rag"
	WinnerStructured = "structured"
	WinnerTie        = "tie"
)

// Criteria are the six rubric dimensions scored per dashboard.
var Criteria = []string{"completeness", "accuracy", "disclosure", "formatting", "provenance", "hallucination_control"}

// Rubric is the four-field summary exposed downstream.
type Rubric struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Disclosure   float64 `json:"disclosure"`
	Formatting   float64 `json:"formatting"`
}

// Scores holds one dashboard's six criterion scores.
type Scores struct {
	Completeness         float64 `json:"completeness"`
	Accuracy             float64 `json:"accuracy"`
	Disclosure           float64 `json:"disclosure"`
	Formatting           float64 `json:"formatting"`
	Provenance           float64 `json:"provenance"`
	HallucinationControl float64 `json:"hallucination_control"`
}

func (s Scores) Overall() float64 {
	return (s.Completeness + s.Accuracy + s.Disclosure + s.Formatting + s.Provenance + s.HallucinationControl) / 6.0
}

func (s Scores) Rubric() Rubric {
	return Rubric{Completeness: s.Completeness, Accuracy: s.Accuracy, Disclosure: s.Disclosure, Formatting: s.Formatting}
}

func (s Scores) clamp() Scores {
	return Scores{
		Completeness:         clamp01(s.Completeness),
		Accuracy:             clamp01(s.Accuracy),
		Disclosure:           clamp01(s.Disclosure),
		Formatting:           clamp01(s.Formatting),
		Provenance:           clamp01(s.Provenance),
		HallucinationControl: clamp01(s.HallucinationControl),
	}
}

func (s Scores) rounded() Scores {
	return Scores{
		Completeness:         round2(s.Completeness),
		Accuracy:             round2(s.Accuracy),
		Disclosure:           round2(s.Disclosure),
		Formatting:           round2(s.Formatting),
		Provenance:           round2(s.Provenance),
		HallucinationControl: round2(s.HallucinationControl),
	}
}

type Detail struct {
	Overall   float64 `json:"overall"`
	Breakdown *Scores `json:"breakdown,omitempty"`
}

type DetailedScores struct {
	RAG        Detail `json:"rag"`
	Structured Detail `json:"structured"`
}

type Result struct {
	Score          float64        `json:"score"`
	Rubric         Rubric         `json:"rubric"`
	Winner         string         `json:"winner"`
	Recommendation string         `json:"recommendation"`
	Strengths      []string       `json:"strengths"`
	Weaknesses     []string       `json:"weaknesses"`
	DetailedScores DetailedScores `json:"detailed_scores"`
	Timestamp      string         `json:"timestamp"`
	Fallback       bool           `json:"fallback,omitempty"`
}

const FallbackRecommendation = "Evaluation completed with fallback scoring. LLM evaluation unavailable."

// Fallback is the neutral result used whenever evaluation fails.
func Fallback() Result {
	return Result{
		Score:          0.75,
		Rubric:         Rubric{Completeness: 0.8, Accuracy: 0.75, Disclosure: 0.7, Formatting: 0.8},
		Winner:         WinnerTie,
		Recommendation: FallbackRecommendation,
		Strengths:      []string{"Dashboards generated successfully"},
		Weaknesses:     []string{"LLM evaluation unavailable - using default scores"},
		DetailedScores: DetailedScores{
			RAG:        Detail{Overall: 0.75},
			Structured: Detail{Overall: 0.75},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fallback:  true,
	}
}

// Compute derives the result from both dashboards' scores. The score is the
// better overall; the rubric copies the winner or averages on a tie.
func Compute(rag, structured Scores, winner string) Result {
	rag, structured = rag.clamp(), structured.clamp()
	ragOverall, structOverall := rag.Overall(), structured.Overall()

	var rubric Rubric
	switch winner {
	case WinnerRAG:
		rubric = rag.Rubric()
	case WinnerStructured:
		rubric = structured.Rubric()
	default:
		winner = WinnerTie
		r, s := rag.Rubric(), structured.Rubric()
		rubric = Rubric{
			Completeness: (r.Completeness + s.Completeness) / 2,
			Accuracy:     (r.Accuracy + s.Accuracy) / 2,
			Disclosure:   (r.Disclosure + s.Disclosure) / 2,
			Formatting:   (r.Formatting + s.Formatting) / 2,
		}
	}
	ragRounded, structRounded := rag.rounded(), structured.rounded()
	return Result{
		Score: round2(math.Max(ragOverall, structOverall)),
		Rubric: Rubric{
			Completeness: round2(rubric.Completeness),
			Accuracy:     round2(rubric.Accuracy),
			Disclosure:   round2(rubric.Disclosure),
			Formatting:   round2(rubric.Formatting),
		},
		Winner: winner,
		DetailedScores: DetailedScores{
			RAG:        Detail{Overall: round2(ragOverall), Breakdown: &ragRounded},
			Structured: Detail{Overall: round2(structOverall), Breakdown: &structRounded},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
