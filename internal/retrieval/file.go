package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type fileChunk struct {
	Text       string `json:"text"`
	SourceURL  string `json:"source_url"`
	SourceType string `json:"source_type"`
	CrawledAt  string `json:"crawled_at"`
}

// FileSearcher reads {dir}/{company}.jsonl and ranks chunks by query term
// overlap. Distance is the fraction of query terms missing from a chunk.
type FileSearcher struct {
	dir string
}

func NewFileSearcher(dir string) *FileSearcher {
	return &FileSearcher{dir: dir}
}

func (s *FileSearcher) Search(ctx context.Context, companyID, query string, topK int) ([]Chunk, error) {
	if !validQuery(companyID, query, topK) {
		return nil, nil
	}
	companyID = strings.TrimSpace(companyID)
	if strings.ContainsAny(companyID, `/\`) || strings.Contains(companyID, "..") {
		return nil, fmt.Errorf("invalid company id %q", companyID)
	}
	f, err := os.Open(filepath.Join(s.dir, companyID+".jsonl"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	type scored struct {
		chunk    Chunk
		distance float64
		line     int
	}
	var hits []scored
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var fc fileChunk
		if err := json.Unmarshal([]byte(raw), &fc); err != nil || strings.TrimSpace(fc.Text) == "" {
			continue
		}
		have := map[string]bool{}
		for _, tok := range tokenize(fc.Text) {
			have[tok] = true
		}
		matched := 0
		for _, t := range terms {
			if have[t] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		d := float64(len(terms)-matched) / float64(len(terms))
		hits = append(hits, scored{
			chunk: withDefaults(Chunk{
				Text:       fc.Text,
				SourceURL:  fc.SourceURL,
				SourceType: fc.SourceType,
				CrawledAt:  fc.CrawledAt,
				Score:      ScoreFromDistance(d),
			}),
			distance: d,
			line:     line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].line < hits[j].line
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.chunk)
	}
	return out, nil
}

// uniqueTerms drops one and two letter tokens, which match almost anything.
func uniqueTerms(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tokenize(q) {
		if len(t) < 3 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
