package llmgw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONStripsMarkdownFence(t *testing.T) {
	text := "```json\n[{\"indicator_id\":\"a\"}]\n```"
	got, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"indicator_id":"a"}]`, got)
}

func TestExtractJSONAcceptsBareJSON(t *testing.T) {
	got, err := ExtractJSON(`  [{"indicator_id":"a"}]  `)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"indicator_id":"a"}]`, got)
}

func TestExtractJSONRejectsNonJSON(t *testing.T) {
	_, err := ExtractJSON("I'm sorry, I cannot help with that.")
	assert.Error(t, err)
}

func TestExtractJSONHandlesPrecedingCommentary(t *testing.T) {
	text := "Here is the classification:\n[{\"indicator_id\":\"a\",\"family\":\"price-value\"}]\nLet me know if you need more."
	got, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Contains(t, got, `"indicator_id":"a"`)
}

func TestPairByIDMatchesByIDNotOrder(t *testing.T) {
	raw := `[{"indicator_id":"b","family":"temporal"},{"indicator_id":"a","family":"qualitative"}]`
	byID, dups, missing, err := PairByID(raw, "indicator_id")
	require.NoError(t, err)
	assert.Empty(t, dups)
	assert.Empty(t, missing)
	assert.Contains(t, byID["a"], `"family":"qualitative"`)
	assert.Contains(t, byID["b"], `"family":"temporal"`)
}

func TestPairByIDReportsMissingAndDuplicateIDs(t *testing.T) {
	raw := `[{"indicator_id":"a"},{"indicator_id":"a"},{"family":"temporal"}]`
	byID, dups, missing, err := PairByID(raw, "indicator_id")
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Equal(t, []int{1}, dups)
	assert.Equal(t, []int{2}, missing)
}

func TestPairByIDRejectsNonArray(t *testing.T) {
	_, _, _, err := PairByID(`{"indicator_id":"a"}`, "indicator_id")
	assert.Error(t, err)
}
