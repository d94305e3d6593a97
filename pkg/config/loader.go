package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ClassifyYAMLConfig represents the complete classify.yaml file structure.
type ClassifyYAMLConfig struct {
	Database     *DatabaseConfig              `yaml:"database"`
	Batch        *BatchConfig                 `yaml:"batch"`
	Concurrency  *ConcurrencyConfig           `yaml:"concurrency"`
	Thresholds   *ThresholdsConfig            `yaml:"thresholds"`
	Retry        *RetryConfig                 `yaml:"retry"`
	Defaults     *Defaults                    `yaml:"defaults"`
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`

	DryRun                bool   `yaml:"dry_run"`
	ReviewAllFlag         bool   `yaml:"review_all_flag"`
	TaxonomyOverridesPath string `yaml:"taxonomy_overrides_path"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load classify.yaml from configDir (missing file is not an error —
//     built-ins alone are a valid configuration)
//  2. Expand environment variables
//  3. Merge built-in + user-defined LLM providers
//  4. Merge user-provided batch/concurrency/thresholds/retry/database
//     config onto built-in defaults (non-zero values override)
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized", "llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadClassifyYAML()
	if err != nil {
		return nil, NewLoadError("classify.yaml", err)
	}

	builtin := GetBuiltinConfig()
	llmProviders := mergeLLMProviders(builtin.LLMProviders, yamlCfg.LLMProviders)

	database := DefaultDatabaseConfig()
	if yamlCfg.Database != nil {
		if err := mergo.Merge(database, yamlCfg.Database, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge database config: %w", err)
		}
	}

	batch := DefaultBatchConfig()
	if yamlCfg.Batch != nil {
		if err := mergo.Merge(batch, yamlCfg.Batch, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge batch config: %w", err)
		}
	}

	concurrency := DefaultConcurrencyConfig()
	if yamlCfg.Concurrency != nil {
		if err := mergo.Merge(concurrency, yamlCfg.Concurrency, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge concurrency config: %w", err)
		}
	}

	thresholds := DefaultThresholdsConfig()
	if yamlCfg.Thresholds != nil {
		if err := mergo.Merge(thresholds, yamlCfg.Thresholds, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge thresholds config: %w", err)
		}
	}

	retry := DefaultRetryConfig()
	if yamlCfg.Retry != nil {
		if err := mergo.Merge(retry, yamlCfg.Retry, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retry config: %w", err)
		}
	}

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.Models == nil {
		defaults.Models = builtin.Defaults.Models
	} else {
		for stage, name := range builtin.Defaults.Models {
			if _, ok := defaults.Models[stage]; !ok {
				defaults.Models[stage] = name
			}
		}
	}

	return &Config{
		configDir:             configDir,
		Defaults:              defaults,
		Database:              database,
		Batch:                 batch,
		Concurrency:           concurrency,
		Thresholds:            thresholds,
		Retry:                 retry,
		LLMProviderRegistry:   NewLLMProviderRegistry(llmProviders),
		DryRun:                yamlCfg.DryRun,
		ReviewAllFlag:         yamlCfg.ReviewAllFlag,
		TaxonomyOverridesPath: yamlCfg.TaxonomyOverridesPath,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadClassifyYAML() (*ClassifyYAMLConfig, error) {
	config := &ClassifyYAMLConfig{
		LLMProviders: make(map[string]LLMProviderConfig),
	}
	if err := l.loadYAML("classify.yaml", config); err != nil {
		return nil, err
	}
	if config.LLMProviders == nil {
		config.LLMProviders = make(map[string]LLMProviderConfig)
	}
	return config, nil
}
