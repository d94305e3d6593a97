package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through the pipeline driver and stages.
type Config struct {
	configDir string

	Defaults    *Defaults
	Database    *DatabaseConfig
	Batch       *BatchConfig
	Concurrency *ConcurrencyConfig
	Thresholds  *ThresholdsConfig
	Retry       *RetryConfig

	LLMProviderRegistry *LLMProviderRegistry

	// DryRun, when true, routes every stage through the mock provider and
	// skips persistence of non-telemetry rows; used for token-accounting
	// only runs.
	DryRun bool

	// ReviewAllFlag forces every Review decision to "escalate", per the
	// review-all-flag audit mode.
	ReviewAllFlag bool

	// TaxonomyOverridesPath optionally points at a YAML file of additional
	// family/type definitions merged over the built-in taxonomy.
	TaxonomyOverridesPath string
}

// Initialize is defined in loader.go.

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{LLMProviders: len(c.LLMProviderRegistry.GetAll())}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
