package llmgw

// ProviderModel identifies a priced model for cost estimation.
type ProviderModel struct {
	Provider string
	Model    string
}

// PricePerMToken is a model's list price, in USD per one million tokens.
type PricePerMToken struct {
	Input  float64
	Output float64
}

// priceTable is a static estimate, not a billing source of truth. It is
// consulted only to populate pipeline_executions.cost_estimate.
var priceTable = map[ProviderModel]PricePerMToken{
	{Provider: "anthropic", Model: "claude-sonnet-4-5"}: {Input: 3.00, Output: 15.00},
	{Provider: "anthropic", Model: "claude-opus-4"}:     {Input: 15.00, Output: 75.00},
	{Provider: "anthropic", Model: "claude-haiku-4"}:    {Input: 0.80, Output: 4.00},
	{Provider: "mock", Model: "mock-deterministic"}:     {Input: 0, Output: 0},
}

// EstimateCost returns the dollar cost of tokensIn/tokensOut tokens against
// provider/model's list price. Unknown provider/model pairs cost 0 rather
// than erroring — an unpriced model should not block a pipeline run.
func EstimateCost(provider, model string, tokensIn, tokensOut int) float64 {
	price, ok := priceTable[ProviderModel{Provider: provider, Model: model}]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1_000_000*price.Input + float64(tokensOut)/1_000_000*price.Output
}
