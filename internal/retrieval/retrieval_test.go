package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeChunks = `{"text": "Acme raised a Series B from Sequoia and other investors.", "source_url": "https://acme.ai/news", "source_type": "news", "crawled_at": "2024-05-01T00:00:00Z"}
{"text": "Acme sells robotics software on a subscription revenue model."}
not json
{"text": "Acme announced layoffs affecting 10% of staff amid regulatory challenges.", "source_url": "https://press.example/acme"}
{"text": ""}
`

func writeChunks(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.jsonl"), []byte(acmeChunks), 0o644))
	return dir
}

func TestScoreFromDistance(t *testing.T) {
	assert.Equal(t, 1.0, ScoreFromDistance(0))
	assert.Equal(t, 0.5, ScoreFromDistance(1))
	assert.Equal(t, 0.333, ScoreFromDistance(2))
	assert.Equal(t, 1.0, ScoreFromDistance(-3))
}

func TestFileSearcherRanksByOverlap(t *testing.T) {
	s := NewFileSearcher(writeChunks(t))
	ctx := context.Background()

	hits, err := s.Search(ctx, "acme", "Acme risks challenges layoffs", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Text, "layoffs")
	assert.Equal(t, "https://press.example/acme", hits[0].SourceURL)
	assert.Equal(t, "unknown", hits[0].SourceType)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	hits, err = s.Search(ctx, "acme", "Acme funding investors", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Text, "Series B")
	assert.Equal(t, "2024-05-01T00:00:00Z", hits[0].CrawledAt)
}

func TestFileSearcherEmptyCases(t *testing.T) {
	s := NewFileSearcher(writeChunks(t))
	ctx := context.Background()

	for _, tc := range []struct{ company, query string }{
		{"", "funding"},
		{"acme", "  "},
		{"globex", "funding"},
		{"acme", "zz"},
		{"acme", "quantum teleportation"},
	} {
		hits, err := s.Search(ctx, tc.company, tc.query, 3)
		require.NoError(t, err, tc)
		assert.Empty(t, hits, tc)
	}

	_, err := s.Search(ctx, "../etc", "funding", 3)
	assert.Error(t, err)
}

type countingSearcher struct {
	calls int
	err   error
}

func (c *countingSearcher) Search(_ context.Context, companyID, query string, topK int) ([]Chunk, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []Chunk{{Text: strings.ToUpper(query), Score: 0.5}}, nil
}

func TestCachedSearcher(t *testing.T) {
	inner := &countingSearcher{}
	c := NewCached(inner, 8, time.Minute)
	ctx := context.Background()

	a, err := c.Search(ctx, "acme", "Funding", 3)
	require.NoError(t, err)
	b, err := c.Search(ctx, "acme", " funding ", 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)

	_, err = c.Search(ctx, "acme", "funding", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	failing := &countingSearcher{err: errors.New("down")}
	c = NewCached(failing, 8, time.Minute)
	_, err = c.Search(ctx, "acme", "funding", 3)
	assert.Error(t, err)
	_, _ = c.Search(ctx, "acme", "funding", 3)
	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, 0, c.Len())
}

func TestPostgresSearcher(t *testing.T) {
	dsn := os.Getenv("RETRIEVAL_TEST_DSN")
	if dsn == "" {
		t.Skip("RETRIEVAL_TEST_DSN not set")
	}
	s, err := NewPostgresSearcher(dsn)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	company := "pgtest_" + time.Now().Format("150405.000000")
	require.NoError(t, s.Insert(ctx, company, Chunk{Text: "The company raised funding from investors", SourceURL: "https://x"}))
	require.NoError(t, s.Insert(ctx, company, Chunk{Text: "Unrelated product notes"}))

	hits, err := s.Search(ctx, company, "funding investors", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.LessOrEqual(t, hits[0].Score, 1.0)
}

func TestCleanText(t *testing.T) {
	in := "Funding news ![logo](https://x/logo.png)\n<!-- nav -->\n\n\n\nAcme raised <img src=\"a.png\"> $20M."
	assert.Equal(t, "Funding news \n\nAcme raised  $20M.", CleanText(in))
}
