package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStatsAndAccessors(t *testing.T) {
	cfg := &Config{
		configDir: "/etc/classify",
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"mock": {Type: LLMProviderTypeMock, Model: "mock-deterministic", MaxTokens: 1024},
		}),
	}

	assert.Equal(t, "/etc/classify", cfg.ConfigDir())
	assert.Equal(t, 1, cfg.Stats().LLMProviders)

	p, err := cfg.GetLLMProvider("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock-deterministic", p.Model)

	_, err = cfg.GetLLMProvider("missing")
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)
}

func TestDefaultsModelForFallsBackWhenUnset(t *testing.T) {
	d := &Defaults{Models: map[string]string{"router": "anthropic-default"}}
	assert.Equal(t, "anthropic-default", d.ModelFor("router", "fallback"))
	assert.Equal(t, "fallback", d.ModelFor("review", "fallback"))

	var nilDefaults *Defaults
	assert.Equal(t, "fallback", nilDefaults.ModelFor("router", "fallback"))
}
