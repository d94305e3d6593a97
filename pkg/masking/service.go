package masking

import "log/slog"

// Service redacts secrets and PII out of indicator text before it reaches
// an LLM provider. Created once at startup (stateless, safe for concurrent
// use from every stage's worker pool).
type Service struct {
	patterns    []*CompiledPattern
	codeMaskers []Masker
	enabled     bool
}

// NewService builds a Service with the built-in pattern set. enabled lets
// a dry run or test disable masking entirely (config.Defaults.MaskingEnabled).
func NewService(enabled bool) *Service {
	s := &Service{
		patterns: Builtin(),
		enabled:  enabled,
	}
	slog.Info("masking service initialized", "patterns", len(s.patterns), "enabled", enabled)
	return s
}

// RegisterMasker adds a code-based masker, applied before regex patterns.
func (s *Service) RegisterMasker(m Masker) {
	s.codeMaskers = append(s.codeMaskers, m)
}

// Mask applies every registered code masker, then every built-in regex
// pattern, to text. Returns text unchanged when the service is disabled or
// text is empty.
func (s *Service) Mask(text string) string {
	if !s.enabled || text == "" {
		return text
	}

	masked := text
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskIndicator returns a copy of text fields (name, description) redacted
// for transmission to a provider, leaving numeric fields untouched.
func (s *Service) MaskIndicator(name, description string) (maskedName, maskedDescription string) {
	return s.Mask(name), s.Mask(description)
}
