package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuiltinConfigIsSingleton(t *testing.T) {
	a := GetBuiltinConfig()
	b := GetBuiltinConfig()
	assert.Same(t, a, b)
}

func TestBuiltinLLMProviders(t *testing.T) {
	b := GetBuiltinConfig()
	require.Contains(t, b.LLMProviders, "anthropic-default")
	require.Contains(t, b.LLMProviders, "mock")

	anthropic := b.LLMProviders["anthropic-default"]
	assert.Equal(t, LLMProviderTypeAnthropic, anthropic.Type)
	assert.Equal(t, "ANTHROPIC_API_KEY", anthropic.APIKeyEnv)
	assert.Positive(t, anthropic.MaxTokens)

	mock := b.LLMProviders["mock"]
	assert.Equal(t, LLMProviderTypeMock, mock.Type)
	assert.Empty(t, mock.APIKeyEnv)
}

func TestBuiltinDefaultsAssignEveryStage(t *testing.T) {
	b := GetBuiltinConfig()
	for _, stage := range []string{"router", "specialist", "orientation", "review"} {
		name, ok := b.Defaults.Models[stage]
		assert.True(t, ok, "stage %s should have a default provider", stage)
		assert.NotEmpty(t, name)
	}
}
