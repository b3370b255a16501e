package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("HITL_MODE", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, cfg.HITLMode)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "us-east-1", cfg.Artifact.Region)
	assert.Equal(t, "ddgraph-dashboards", cfg.Artifact.Bucket)
	assert.Equal(t, 60*time.Second, cfg.StageTimeout)
}

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ddgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/ddgraph
hitl_mode: interactive
stage_timeout: 5s
llm:
  provider: fake
  model: test-model
retrieval:
  chunks_dir: /tmp/chunks
`), 0o644))

	t.Setenv("APP_ENV", "local")
	t.Setenv("HITL_MODE", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_MODEL", "override-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ddgraph", cfg.DataDir)
	assert.Equal(t, ModeInteractive, cfg.HITLMode)
	assert.Equal(t, 5*time.Second, cfg.StageTimeout)
	assert.Equal(t, "fake", cfg.LLM.Provider)
	assert.Equal(t, "override-model", cfg.LLM.Model)
	assert.Equal(t, "/tmp/chunks", cfg.Retrieval.ChunksDir)
}

func TestArtifactEndpointEnablesObjectStore(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.example.com")
	t.Setenv("ARTIFACT_S3_USE_SSL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Artifact.Enabled)
	assert.True(t, cfg.Artifact.UseSSL)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Default()
	cfg.HITLMode = "maybe"

	err := cfg.Validate()
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "hitl_mode", cfgErr.Field)
}
