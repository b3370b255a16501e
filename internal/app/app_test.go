package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddgraph/internal/config"
	"ddgraph/internal/storage"
	"ddgraph/internal/workflow"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.LLM.Provider = "fake"
	return cfg
}

func writePayload(t *testing.T, dataDir, id, body string) {
	t.Helper()
	dir := filepath.Join(dataDir, "payloads")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0o644))
}

func TestNewRunsWorkflowAgainstLocalStore(t *testing.T) {
	cfg := testConfig(t)
	writePayload(t, cfg.DataDir, "acme", `{"company_record":{"legal_name":"Acme","website":"https://acme.test"}}`)

	a, err := New(context.Background(), cfg, Options{Approval: ApprovalAsync})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.NotNil(t, a.Workflow)
	_, isLocal := a.Store.(*storage.LocalStore)
	assert.True(t, isLocal)
	assert.False(t, a.Tracing.Enabled())

	ids, err := a.Companies.CompanyIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ids)

	out, err := a.Workflow.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, out.Status)
	assert.True(t, strings.HasPrefix(out.DashboardKey, "dashboards/acme/"))
	_, err = os.Stat(filepath.Join(cfg.DataDir, filepath.FromSlash(out.DashboardKey)))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Runs.WithLabelValues("completed")))
}

func TestApproverFollowsMode(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Nil(t, a.approver(ApprovalAsync))
	assert.Same(t, a.Broker, a.approver(ApprovalBroker))
	// async config never prompts
	assert.Nil(t, a.approver(ApprovalFromConfig))
}

func TestMissingChunksDirSearchesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retrieval.ChunksDir = filepath.Join(cfg.DataDir, "absent")
	a := &App{Config: cfg}
	s, err := a.buildSearcher()
	require.NoError(t, err)
	res, err := s.Search(context.Background(), "acme", "funding", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}
