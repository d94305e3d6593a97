package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

func TestChatSynthesizesOneObjectPerIndicatorID(t *testing.T) {
	req := llmgw.ChatRequest{
		Messages: []llmgw.Message{
			{Role: "system", Content: "classify these indicators"},
			{Role: "user", Content: "#1 [id=ind-1] Unemployment Rate (pct, monthly)\n#2 [id=ind-2] Brent Crude Price (usd, daily)"},
		},
	}

	resp, err := New().Chat(context.Background(), req)
	require.NoError(t, err)

	raw, err := llmgw.ExtractJSON(resp.Text)
	require.NoError(t, err)

	byID, dups, missing, err := llmgw.PairByID(raw, "indicator_id")
	require.NoError(t, err)
	assert.Empty(t, dups)
	assert.Empty(t, missing)
	assert.Contains(t, byID, "ind-1")
	assert.Contains(t, byID, "ind-2")
}

func TestChatIsDeterministicForTheSameID(t *testing.T) {
	req := func() llmgw.ChatRequest {
		return llmgw.ChatRequest{Messages: []llmgw.Message{
			{Role: "user", Content: "#1 [id=ind-1] Unemployment Rate (pct, monthly)"},
		}}
	}

	first, err := New().Chat(context.Background(), req())
	require.NoError(t, err)
	second, err := New().Chat(context.Background(), req())
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
}

func TestChatSynthesizesATaxonomyValidIndicatorType(t *testing.T) {
	req := llmgw.ChatRequest{Messages: []llmgw.Message{
		{Role: "user", Content: "#1 [id=gdp-1] Gross Domestic Product (USD, quarterly)\n#2 [id=unemp-1] Unemployment Rate (pct, monthly)"},
	}}
	resp, err := New().Chat(context.Background(), req)
	require.NoError(t, err)

	raw, err := llmgw.ExtractJSON(resp.Text)
	require.NoError(t, err)
	byID, _, _, err := llmgw.PairByID(raw, "indicator_id")
	require.NoError(t, err)

	for id, obj := range byID {
		family := gjson.Get(obj, "family").String()
		indicatorType := gjson.Get(obj, "indicator_type").String()
		assert.True(t, taxonomy.Builtin().ValidType(models.Family(family), indicatorType),
			"synthesized indicator_type %q is not valid for family %q (id %s)", indicatorType, family, id)
	}
}

func TestChatReportsNonZeroTokenEstimates(t *testing.T) {
	req := llmgw.ChatRequest{Messages: []llmgw.Message{
		{Role: "user", Content: "#1 [id=ind-1] Unemployment Rate (pct, monthly)"},
	}}
	resp, err := New().Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Greater(t, resp.TokensIn, 0)
	assert.Greater(t, resp.TokensOut, 0)
}
