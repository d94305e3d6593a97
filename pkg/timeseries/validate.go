package timeseries

import "github.com/codeready-toolchain/classify/pkg/models"

// Validate runs both deterministic checks against one indicator's samples
// and assembles a models.ValidationResult. indicatorType and
// isCurrencyDenominated come from the Specialist stage's output; scale from
// the source Indicator record. Never calls an LLM provider.
func Validate(indicatorID, indicatorType, name, scale string, isCurrencyDenominated bool, samples []models.Sample) models.ValidationResult {
	dated, _ := SplitObservations(samples)

	cum := DetectCumulative(dated)
	mag := CheckMagnitude(indicatorType, name, scale, isCurrencyDenominated, dated)

	return models.ValidationResult{
		IndicatorID:          indicatorID,
		IsCumulative:         cum.IsCumulative,
		CumulativeConfidence: cum.Confidence,
		SuggestedTemporal:    cum.SuggestedTemporal(),
		ValidationReasoning:  cum.Reasoning,
		Analyzed:             cum.Analyzed,
		MagnitudeSuspicious:  mag.Suspicious,
		MagnitudeReasoning:   mag.Reasoning,
	}
}
