package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	payloads := filepath.Join(dir, "payloads")
	require.NoError(t, os.MkdirAll(payloads, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(payloads, "acme.json"),
		[]byte(`{"company_record":{"legal_name":"Acme"}}`), 0o644))
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LLM_PROVIDER", "fake")
	t.Setenv("HITL_MODE", "async")
	t.Setenv("MCP_SERVER_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("ARTIFACT_MINIO_ENDPOINT", "")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCompaniesListsDataDir(t *testing.T) {
	setupData(t)
	out, err := execute(t, "companies")
	require.NoError(t, err)
	assert.Equal(t, "acme\n", out)
}

func TestRunNeedsCompany(t *testing.T) {
	setupData(t)
	runAll = false
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestRunThenShow(t *testing.T) {
	setupData(t)
	out, err := execute(t, "run", "acme", "--async")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "dashboards/acme/due_diligence_")

	out, err = execute(t, "show", "acme", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "- **Human Approval:** Approved")

	out, err = execute(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending approvals")
}

func TestResumeUnknownRun(t *testing.T) {
	setupData(t)
	_, err := execute(t, "resume", "acme", "nope", "--decision", "approve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending run")
}
