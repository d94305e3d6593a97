package masking

import (
	"log/slog"
	"regexp"
	"sync"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// patternDef is the uncompiled, data-only form built-in patterns are
// declared in — compiled once by Builtin().
type patternDef struct {
	Name        string
	Pattern     string
	Replacement string
	Description string
}

// builtinPatternDefs lists the secrets/PII a provider must never see in an
// indicator's name or description: cloud credentials, bearer/API tokens,
// emails, and IPv4 addresses. Evaluated in order, a fixed slice rather than
// a dispatch map, so adding a pattern means appending to this list.
var builtinPatternDefs = []patternDef{
	{
		Name:        "aws-access-key",
		Pattern:     `\bAKIA[0-9A-Z]{16}\b`,
		Replacement: "[REDACTED-AWS-KEY]",
		Description: "AWS access key ID",
	},
	{
		Name:        "bearer-token",
		Pattern:     `(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`,
		Replacement: "Bearer [REDACTED-TOKEN]",
		Description: "HTTP bearer token",
	},
	{
		Name:        "generic-api-key",
		Pattern:     `(?i)\b(api[_-]?key|secret|token)\s*[:=]\s*['"]?[A-Za-z0-9\-._]{16,}['"]?`,
		Replacement: "$1=[REDACTED]",
		Description: "key=value style API key or secret",
	},
	{
		Name:        "jwt",
		Pattern:     `\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`,
		Replacement: "[REDACTED-JWT]",
		Description: "JSON Web Token",
	},
	{
		Name:        "email",
		Pattern:     `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		Replacement: "[REDACTED-EMAIL]",
		Description: "email address",
	},
	{
		Name:        "ipv4",
		Pattern:     `\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\b`,
		Replacement: "[REDACTED-IP]",
		Description: "IPv4 address",
	},
}

var (
	builtinOnce     sync.Once
	builtinPatterns []*CompiledPattern
)

// Builtin compiles builtinPatternDefs once and returns the shared slice.
// Invalid patterns (none expected; a defensive check, not a recovery path)
// are logged and skipped rather than panicking a batch run.
func Builtin() []*CompiledPattern {
	builtinOnce.Do(func() {
		for _, def := range builtinPatternDefs {
			compiled, err := regexp.Compile(def.Pattern)
			if err != nil {
				slog.Error("masking: failed to compile built-in pattern, skipping",
					"pattern", def.Name, "error", err)
				continue
			}
			builtinPatterns = append(builtinPatterns, &CompiledPattern{
				Name:        def.Name,
				Regex:       compiled,
				Replacement: def.Replacement,
				Description: def.Description,
			})
		}
	})
	return builtinPatterns
}
