package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithNoFileUsesBuiltins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "anthropic-default", cfg.Defaults.Models["router"])
	assert.True(t, cfg.LLMProviderRegistry.Has("mock"))
}

func TestInitializeMergesUserYAMLOverBuiltins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	dir := t.TempDir()
	yaml := `
batch:
  specialist_batch_size: 40
llm_providers:
  mock:
    type: mock
    model: mock-v2
    max_tokens: 2048
defaults:
  models:
    router: mock
    specialist: mock
    orientation: mock
    review: mock
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classify.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Batch.SpecialistBatchSize)
	assert.Equal(t, 25, cfg.Batch.RouterBatchSize, "unset fields keep their built-in default")

	mock, err := cfg.GetLLMProvider("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock-v2", mock.Model)
	assert.Equal(t, 2048, mock.MaxTokens)
}

func TestInitializeFailsValidationOnBadThresholds(t *testing.T) {
	dir := t.TempDir()
	yaml := "thresholds:\n  confidence_family_min: 2.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classify.yaml"), []byte(yaml), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	dir := t.TempDir()
	_, err := Initialize(context.Background(), filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
}
