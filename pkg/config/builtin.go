package config

import "sync"

// BuiltinConfig holds the configuration shipped with the binary: the
// default LLM providers and defaults available even with no YAML file
// on disk.
type BuiltinConfig struct {
	LLMProviders map[string]LLMProviderConfig
	Defaults     Defaults
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration
// (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		LLMProviders: initBuiltinLLMProviders(),
		Defaults: Defaults{
			Models: map[string]string{
				"router":      "anthropic-default",
				"specialist":  "anthropic-default",
				"orientation": "anthropic-default",
				"review":      "anthropic-default",
			},
		},
	}
}

func initBuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"anthropic-default": {
			Type:      LLMProviderTypeAnthropic,
			Model:     "claude-sonnet-4-5",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens: 4096,
		},
		"mock": {
			Type:      LLMProviderTypeMock,
			Model:     "mock-deterministic",
			MaxTokens: 4096,
		},
	}
}
