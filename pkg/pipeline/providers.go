package pipeline

import (
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/llmgw/providers/anthropic"
	"github.com/codeready-toolchain/classify/pkg/llmgw/providers/mock"
)

// ProviderSet resolves every named LLM provider in a config.Config into a
// live llmgw.Provider, built once at startup and shared read-only across
// every stage's worker pool.
type ProviderSet struct {
	providers map[string]llmgw.Provider
	configs   map[string]*config.LLMProviderConfig
}

// BuildProviderSet instantiates every provider in cfg.LLMProviderRegistry.
// DryRun forces every entry to the mock provider regardless of its
// configured type, so a dry run never requires an API key.
func BuildProviderSet(cfg *config.Config) (*ProviderSet, error) {
	set := &ProviderSet{
		providers: make(map[string]llmgw.Provider),
		configs:   make(map[string]*config.LLMProviderConfig),
	}

	for name, pc := range cfg.LLMProviderRegistry.GetAll() {
		pc := pc
		set.configs[name] = pc

		if cfg.DryRun {
			set.providers[name] = mock.New()
			continue
		}

		switch pc.Type {
		case config.LLMProviderTypeMock:
			set.providers[name] = mock.New()
		case config.LLMProviderTypeAnthropic:
			p, err := anthropic.New(pc.APIKeyEnv, pc.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("building anthropic provider %q: %w", name, err)
			}
			set.providers[name] = p
		default:
			return nil, fmt.Errorf("building provider %q: unrecognized type %q", name, pc.Type)
		}
	}

	return set, nil
}

// Resolve returns the provider and its model configuration registered
// under name.
func (s *ProviderSet) Resolve(name string) (llmgw.Provider, *config.LLMProviderConfig, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, nil, fmt.Errorf("no provider registered under name %q", name)
	}
	return p, s.configs[name], nil
}

// ForStage resolves the provider configured for stage via cfg.Defaults.Models.
func (s *ProviderSet) ForStage(cfg *config.Config, stage string) (llmgw.Provider, *config.LLMProviderConfig, error) {
	name := cfg.Defaults.ModelFor(stage, "anthropic-default")
	return s.Resolve(name)
}
