package timeseries

import (
	"testing"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/stretchr/testify/assert"
)

func samplesOf(values ...float64) []models.Sample {
	samples := make([]models.Sample, len(values))
	for i, v := range values {
		samples[i] = models.Sample{Date: "2024-01", Value: v}
	}
	return samples
}

func TestCheckMagnitudeFlagsPercentageOutsideBounds(t *testing.T) {
	dated := samplesOf(5, 10, 101, 102, 103, -150, 50, 60, 70, 80)

	result := CheckMagnitude("percentage", "Unemployment rate", "", false, dated)

	assert.True(t, result.Suspicious)
}

func TestCheckMagnitudeToleratesUpToFivePercentOutOfBounds(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 50
	}
	values[0] = 150

	result := CheckMagnitude("rate", "GDP growth rate", "", false, samplesOf(values...))

	assert.False(t, result.Suspicious)
}

func TestCheckMagnitudeExemptsHyperinflationNamedSeries(t *testing.T) {
	dated := samplesOf(5000, 8000, -3000, 10000)

	result := CheckMagnitude("percentage", "Zimbabwe hyperinflation index", "", false, dated)

	assert.False(t, result.Suspicious)
}

func TestCheckMagnitudeFlagsUnscaledMonetaryStock(t *testing.T) {
	dated := samplesOf(2e14, 3e14, 2.5e14)

	result := CheckMagnitude("stock", "Total public debt", "", true, dated)

	assert.True(t, result.Suspicious)
}

func TestCheckMagnitudeAllowsLargeStockWithScaleHint(t *testing.T) {
	dated := samplesOf(2e14, 3e14, 2.5e14)

	result := CheckMagnitude("stock", "Total public debt", "millions", true, dated)

	assert.False(t, result.Suspicious)
}

func TestCheckMagnitudeIgnoresNonMonetaryStock(t *testing.T) {
	dated := samplesOf(2e14, 3e14, 2.5e14)

	result := CheckMagnitude("stock", "Total population", "", false, dated)

	assert.False(t, result.Suspicious)
}
