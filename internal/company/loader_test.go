package company

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddgraph/internal/risk"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLoader(dir, 8)
	require.NoError(t, err)
	return l, dir
}

func TestLoadMissingCompanyReturnsNil(t *testing.T) {
	l, _ := newLoader(t)
	c, err := l.Load(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadStructuredOnly(t *testing.T) {
	l, dir := newLoader(t)
	writeFile(t, filepath.Join(dir, "structured", "acme.json"), `{
		"company_name": "Acme Corp",
		"industry": "Robotics",
		"founded": 2019,
		"funding": "$40M",
		"events": [{"event_type": "funding", "title": "Series B"}]
	}`)

	c, err := l.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Acme Corp", c.Name)
	assert.Equal(t, "Robotics", c.Industry)
	assert.Equal(t, "2019", c.Founded)
	assert.Len(t, c.Events, 1)
	assert.False(t, c.HasRisk)
	assert.Nil(t, c.Payload)

	ov := c.Overview()
	assert.Equal(t, "Acme Corp", ov.Company.Name)
	assert.Equal(t, NotDisclosed, ov.Company.Website)
	assert.Equal(t, "Enterprise / B2B", ov.Business.TargetMarket)
	assert.Equal(t, "$40M", ov.Funding.TotalRaised)
}

func TestLoadPayloadEventsOverrideAndFlagRisk(t *testing.T) {
	l, dir := newLoader(t)
	writeFile(t, filepath.Join(dir, "structured", "acme.json"), `{"name": "Acme", "events": [{"event_type": "funding"}]}`)
	writeFile(t, filepath.Join(dir, "payloads", "acme.json"), `{
		"events": [
			{"event_type": "product_release", "title": "v2"},
			{"event_type": "layoff", "title": "Cuts 10%", "occurred_on": "2024-05-01"}
		]
	}`)

	c, err := l.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Acme", c.Name)
	require.Len(t, c.Events, 2)
	assert.True(t, c.HasRisk)
	assert.NotEmpty(t, c.Payload)

	sigs := c.RiskSignals()
	require.Len(t, sigs, 1)
	assert.Equal(t, "layoff", sigs[0].Type)
	assert.Equal(t, risk.SeverityHigh, sigs[0].Severity)
	assert.Equal(t, "Cuts 10%", sigs[0].Description)
	assert.Equal(t, "2024-05-01", sigs[0].OccurredOn)
}

func TestLoadSkipsCorruptSource(t *testing.T) {
	l, dir := newLoader(t)
	writeFile(t, filepath.Join(dir, "payloads", "acme.json"), `{not json`)
	writeFile(t, filepath.Join(dir, "structured", "acme.json"), `{"name": "Acme"}`)

	c, err := l.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Acme", c.Name)
	assert.Nil(t, c.Payload)

	writeFile(t, filepath.Join(dir, "payloads", "broken.json"), `[]`)
	c, err = l.Load(context.Background(), "broken")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadNameFallsBackToID(t *testing.T) {
	l, dir := newLoader(t)
	writeFile(t, filepath.Join(dir, "payloads", "acme.json"), `{"events": []}`)
	writeFile(t, filepath.Join(dir, "structured", "acme.json"), `{"industry": "AI"}`)

	c, err := l.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "acme", c.DisplayName())
}

func TestLoadCacheInvalidatesOnEdit(t *testing.T) {
	l, dir := newLoader(t)
	path := filepath.Join(dir, "structured", "acme.json")
	writeFile(t, path, `{"name": "Old"}`)

	c, err := l.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Old", c.Name)

	writeFile(t, path, `{"name": "New"}`)
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	c, err = l.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "New", c.Name)
}

func TestLoadRejectsPathEscapes(t *testing.T) {
	l, _ := newLoader(t)
	for _, id := range []string{"", "../etc", "a/b", ".."} {
		_, err := l.Load(context.Background(), id)
		assert.Error(t, err, id)
	}
}

func TestCompanyIDsUnion(t *testing.T) {
	l, dir := newLoader(t)
	writeFile(t, filepath.Join(dir, "payloads", "beta.json"), `{}`)
	writeFile(t, filepath.Join(dir, "payloads", "notes.txt"), `x`)
	writeFile(t, filepath.Join(dir, "structured", "alpha.json"), `{}`)
	writeFile(t, filepath.Join(dir, "structured", "beta.json"), `{}`)

	ids, err := l.CompanyIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)
}

func TestStubOverview(t *testing.T) {
	ov := StubOverview("ghost")
	assert.Equal(t, "ghost", ov.Company.Name)
	assert.Equal(t, NotDisclosed, ov.Business.TargetMarket)
	assert.Empty(t, ov.Company.Website)
}
