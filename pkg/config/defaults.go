package config

// Defaults contains system-wide defaults used when a run doesn't override
// them — which named LLM provider backs each stage.
type Defaults struct {
	// Models maps stage name ("router", "specialist", "orientation",
	// "review") to the LLM provider name in LLMProviderRegistry.
	Models map[string]string `yaml:"models,omitempty"`

	// MaskingEnabled controls whether indicator text is redacted (see
	// pkg/masking) before being sent to an LLM provider.
	MaskingEnabled bool `yaml:"masking_enabled,omitempty"`
}

// ModelFor returns the provider name configured for stage, or fallback if
// unset.
func (d *Defaults) ModelFor(stage, fallback string) string {
	if d == nil || d.Models == nil {
		return fallback
	}
	if name, ok := d.Models[stage]; ok && name != "" {
		return name
	}
	return fallback
}
