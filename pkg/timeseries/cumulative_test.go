package timeseries

import (
	"testing"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestDetectCumulativeFindsYearEndResetPattern(t *testing.T) {
	dated := []models.Sample{
		{Date: "2020-01", Value: 10},
		{Date: "2020-06", Value: 60},
		{Date: "2020-12", Value: 120},
		{Date: "2021-01", Value: 8},
		{Date: "2021-06", Value: 70},
		{Date: "2021-12", Value: 130},
	}

	result := DetectCumulative(dated)

	assert.True(t, result.Analyzed)
	assert.True(t, result.IsCumulative)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestDetectCumulativeRejectsSeriesWithoutResetNearMinimum(t *testing.T) {
	dated := []models.Sample{
		{Date: "2020-01", Value: 10},
		{Date: "2020-06", Value: 60},
		{Date: "2020-12", Value: 120},
		{Date: "2021-01", Value: 115},
		{Date: "2021-06", Value: 170},
		{Date: "2021-12", Value: 230},
	}

	result := DetectCumulative(dated)

	assert.True(t, result.Analyzed)
	assert.False(t, result.IsCumulative, "no reset near the series minimum at the year boundary")
}

func TestDetectCumulativeRejectsMostlyDecreasingSeries(t *testing.T) {
	dated := []models.Sample{
		{Date: "2020-01", Value: 120},
		{Date: "2020-06", Value: 60},
		{Date: "2020-12", Value: 10},
	}

	result := DetectCumulative(dated)

	assert.True(t, result.Analyzed)
	assert.False(t, result.IsCumulative)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectCumulativeNotAnalyzedWithInsufficientSteps(t *testing.T) {
	dated := []models.Sample{
		{Date: "2020-01", Value: 10},
		{Date: "2021-01", Value: 8},
	}

	result := DetectCumulative(dated)

	assert.False(t, result.Analyzed)
	assert.False(t, result.IsCumulative)
}

func TestSuggestedTemporalRequiresBothCumulativeAndHighConfidence(t *testing.T) {
	tests := []struct {
		name   string
		result CumulativeResult
		want   models.TemporalAggregation
	}{
		{"below threshold", CumulativeResult{IsCumulative: true, Confidence: 0.5}, ""},
		{"not cumulative despite high confidence", CumulativeResult{IsCumulative: false, Confidence: 0.9}, ""},
		{"cumulative and confident", CumulativeResult{IsCumulative: true, Confidence: 0.7}, models.TemporalPeriodCumulative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.result.SuggestedTemporal(), tt.name)
	}
}
