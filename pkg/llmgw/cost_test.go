package llmgw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCostUsesListedPrice(t *testing.T) {
	cost := EstimateCost("anthropic", "claude-sonnet-4-5", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, cost, 0.0001)
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	cost := EstimateCost("openai", "gpt-unknown", 1_000_000, 1_000_000)
	assert.Zero(t, cost)
}

func TestEstimateCostMockProviderIsFree(t *testing.T) {
	cost := EstimateCost("mock", "mock-deterministic", 5_000, 5_000)
	assert.Zero(t, cost)
}
