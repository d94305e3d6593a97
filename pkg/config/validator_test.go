package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Batch:       DefaultBatchConfig(),
		Concurrency: DefaultConcurrencyConfig(),
		Thresholds:  DefaultThresholdsConfig(),
		Retry:       DefaultRetryConfig(),
		Defaults: &Defaults{
			Models: map[string]string{
				"router":      "mock",
				"specialist":  "mock",
				"orientation": "mock",
				"review":      "mock",
			},
		},
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"mock": {Type: LLMProviderTypeMock, Model: "mock-deterministic", MaxTokens: 1024},
		}),
		DryRun: true,
	}
}

func TestValidateAllAcceptsValidConfig(t *testing.T) {
	require.NoError(t, NewValidator(validConfig()).ValidateAll())
}

func TestValidateBatchRejectsZero(t *testing.T) {
	cfg := validConfig()
	cfg.Batch.SpecialistBatchSize = 0
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateConcurrencyRejectsNegative(t *testing.T) {
	cfg := validConfig()
	cfg.Concurrency.Review = -1
	require.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateThresholdsRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ThresholdsConfig)
	}{
		{"negative", func(th *ThresholdsConfig) { th.ConfidenceFamilyMin = -0.1 }},
		{"above one", func(th *ThresholdsConfig) { th.ConfidenceClsMin = 1.5 }},
		{"zero timeout", func(th *ThresholdsConfig) { th.RequestTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg.Thresholds)
			require.Error(t, NewValidator(cfg).ValidateAll())
		})
	}
}

func TestValidateRetryRejectsNonPositiveDelay(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.RetryDelay = 0
	require.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateLLMProvidersRejectsEmptyRegistry(t *testing.T) {
	cfg := validConfig()
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestValidateDefaultsRejectsUnknownProviderReference(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.Models["review"] = "does-not-exist"
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestValidateDefaultsRejectsMissingStage(t *testing.T) {
	cfg := validConfig()
	delete(cfg.Defaults.Models, "orientation")
	require.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateLLMProvidersRequiresAPIKeyEnvForNonMock(t *testing.T) {
	cfg := validConfig()
	cfg.DryRun = false
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"anthropic-default": {Type: LLMProviderTypeAnthropic, Model: "claude-sonnet-4-5", MaxTokens: 1024},
	})
	cfg.Defaults.Models = map[string]string{
		"router": "anthropic-default", "specialist": "anthropic-default",
		"orientation": "anthropic-default", "review": "anthropic-default",
	}
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
