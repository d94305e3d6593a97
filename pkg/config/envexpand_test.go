package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CLASSIFY_TEST_HOST", "db.internal")
	t.Setenv("CLASSIFY_TEST_PORT", "5432")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "host: ${CLASSIFY_TEST_HOST}", "host: db.internal"},
		{"bare", "host: $CLASSIFY_TEST_HOST", "host: db.internal"},
		{"multiple", "${CLASSIFY_TEST_HOST}:${CLASSIFY_TEST_PORT}", "db.internal:5432"},
		{"missing expands empty", "${CLASSIFY_TEST_UNSET_VAR}", ""},
		{"no vars", "plain string", "plain string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv([]byte(tt.in))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExpandEnvPreservesUnrelatedContent(t *testing.T) {
	os.Unsetenv("CLASSIFY_TEST_UNUSED")
	in := "llm_providers:\n  anthropic-default:\n    model: claude-sonnet-4-5\n"
	assert.Equal(t, in, string(ExpandEnv([]byte(in))))
}
