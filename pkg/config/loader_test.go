package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_BuiltinDefaults(t *testing.T) {
	cfg, err := Initialize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Defaults.MaxIterations)
	assert.Equal(t, 0.7, cfg.Defaults.VerifierApproveThreshold)
	assert.Equal(t, 0.3, cfg.Defaults.VerifierRejectThreshold)
	assert.Equal(t, 3600*time.Second, cfg.Defaults.CacheTTL)
}

func TestInitialize_YAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  max_iterations: 5
  verifier_approve_threshold: 0.8
`), 0o600))

	cfg, err := Initialize(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Defaults.MaxIterations)
	assert.Equal(t, 0.8, cfg.Defaults.VerifierApproveThreshold)
	// Unset fields keep their built-in default.
	assert.Equal(t, 0.3, cfg.Defaults.VerifierRejectThreshold)
}

func TestInitialize_MissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), "/nonexistent/medqa.yaml")
	assert.Error(t, err)
}

func TestInitialize_InvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  verifier_approve_threshold: 0.2
  verifier_reject_threshold: 0.9
`), 0o600))

	_, err := Initialize(context.Background(), path)
	assert.Error(t, err)
}

func TestEnvExpand(t *testing.T) {
	t.Setenv("MEDQA_TEST_VALUE", "expanded")
	out := ExpandEnv([]byte("value: ${MEDQA_TEST_VALUE}"))
	assert.Equal(t, "value: expanded", string(out))
}
