package config

import (
	"fmt"
	"os"
)

// Validator checks a loaded Config for internal consistency before the
// pipeline starts, the same fail-fast-at-startup discipline as the
// teacher's Validator — every problem is found at Initialize time rather
// than surfacing mid-run as a stage failure.
type Validator struct {
	cfg *Config
}

// NewValidator creates a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation check in dependency order, returning
// the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateBatch(); err != nil {
		return err
	}
	if err := v.validateConcurrency(); err != nil {
		return err
	}
	if err := v.validateThresholds(); err != nil {
		return err
	}
	if err := v.validateRetry(); err != nil {
		return err
	}
	if err := v.validateLLMProviders(); err != nil {
		return err
	}
	if err := v.validateDefaults(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateBatch() error {
	b := v.cfg.Batch
	for name, size := range map[string]int{
		"router_batch_size":      b.RouterBatchSize,
		"specialist_batch_size":  b.SpecialistBatchSize,
		"orientation_batch_size": b.OrientationBatchSize,
		"review_batch_size":      b.ReviewBatchSize,
	} {
		if size < 1 {
			return NewValidationError("batch", name, "", fmt.Errorf("%w: must be >= 1, got %d", ErrValidationFailed, size))
		}
	}
	return nil
}

func (v *Validator) validateConcurrency() error {
	c := v.cfg.Concurrency
	for name, n := range map[string]int{
		"router":      c.Router,
		"specialist":  c.Specialist,
		"orientation": c.Orientation,
		"review":      c.Review,
	} {
		if n < 1 {
			return NewValidationError("concurrency", name, "", fmt.Errorf("%w: must be >= 1, got %d", ErrValidationFailed, n))
		}
	}
	return nil
}

func (v *Validator) validateThresholds() error {
	t := v.cfg.Thresholds
	for name, val := range map[string]float64{
		"confidence_family_min": t.ConfidenceFamilyMin,
		"confidence_cls_min":    t.ConfidenceClsMin,
		"confidence_orient_min": t.ConfidenceOrientMin,
		"review_confidence_min": t.ReviewConfidenceMin,
	} {
		if val < 0 || val > 1 {
			return NewValidationError("thresholds", name, "", fmt.Errorf("%w: must be in [0,1], got %f", ErrValidationFailed, val))
		}
	}
	if t.RequestTimeout <= 0 {
		return NewValidationError("thresholds", "request_timeout", "", fmt.Errorf("%w: must be positive", ErrValidationFailed))
	}
	return nil
}

func (v *Validator) validateRetry() error {
	r := v.cfg.Retry
	if r.MaxRetries < 0 {
		return NewValidationError("retry", "max_retries", "", fmt.Errorf("%w: must be >= 0, got %d", ErrValidationFailed, r.MaxRetries))
	}
	if r.RetryDelay <= 0 {
		return NewValidationError("retry", "retry_delay", "", fmt.Errorf("%w: must be positive", ErrValidationFailed))
	}
	return nil
}

// validateLLMProviders validates every registered provider and, for the
// providers actually referenced by Defaults.Models, checks that the
// configured API key environment variable is set. Unreferenced providers
// are not required to have a live key — mirrors the teacher's
// validateLLMProviders, which only demands credentials for providers a
// chain actually uses.
func (v *Validator) validateLLMProviders() error {
	providers := v.cfg.LLMProviderRegistry.GetAll()
	if len(providers) == 0 {
		return NewValidationError("llm_provider", "*", "", fmt.Errorf("%w: no LLM providers configured", ErrValidationFailed))
	}
	for name, p := range providers {
		if !p.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("%w: %q", ErrValidationFailed, p.Type))
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("%w: required", ErrValidationFailed))
		}
	}

	referenced := make(map[string]bool)
	if v.cfg.Defaults != nil {
		for _, name := range v.cfg.Defaults.Models {
			referenced[name] = true
		}
	}
	for name := range referenced {
		p, err := v.cfg.LLMProviderRegistry.Get(name)
		if err != nil {
			return NewValidationError("defaults", "models", "", err)
		}
		if p.Type == LLMProviderTypeMock {
			continue
		}
		if p.APIKeyEnv == "" {
			return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("%w: required for non-mock provider", ErrValidationFailed))
		}
		if os.Getenv(p.APIKeyEnv) == "" && !v.cfg.DryRun {
			return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("%w: environment variable %s is not set", ErrValidationFailed, p.APIKeyEnv))
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	if v.cfg.Defaults == nil || v.cfg.Defaults.Models == nil {
		return nil
	}
	for _, stage := range []string{"router", "specialist", "orientation", "review"} {
		name, ok := v.cfg.Defaults.Models[stage]
		if !ok || name == "" {
			return NewValidationError("defaults", stage, "models", fmt.Errorf("%w: no provider assigned", ErrValidationFailed))
		}
		if !v.cfg.LLMProviderRegistry.Has(name) {
			return NewValidationError("defaults", stage, "models", fmt.Errorf("%w: references unknown provider %q", ErrInvalidReference, name))
		}
	}
	return nil
}
