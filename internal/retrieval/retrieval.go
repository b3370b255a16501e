// Package retrieval searches previously ingested text chunks for a company.
package retrieval

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Chunk is one search hit. Score is in (0,1], higher is closer.
type Chunk struct {
	Text       string  `json:"text"`
	SourceURL  string  `json:"source_url"`
	Score      float64 `json:"score"`
	SourceType string  `json:"source_type"`
	CrawledAt  string  `json:"crawled_at"`
}

type Searcher interface {
	Search(ctx context.Context, companyID, query string, topK int) ([]Chunk, error)
}

// ScoreFromDistance maps a vector or lexical distance to a similarity score.
func ScoreFromDistance(distance float64) float64 {
	if distance < 0 || math.IsNaN(distance) {
		distance = 0
	}
	return math.Round(1.0/(1.0+distance)*1000) / 1000
}

// validQuery reports whether the inputs are worth searching.
func validQuery(companyID, query string, topK int) bool {
	return strings.TrimSpace(companyID) != "" && strings.TrimSpace(query) != "" && topK > 0
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func withDefaults(c Chunk) Chunk {
	c.Text = CleanText(c.Text)
	if c.SourceURL == "" {
		c.SourceURL = "unknown"
	}
	if c.SourceType == "" {
		c.SourceType = "unknown"
	}
	return c
}

// Nop returns no results.
type Nop struct{}

func (Nop) Search(context.Context, string, string, int) ([]Chunk, error) { return nil, nil }
