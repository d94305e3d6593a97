package pipeline

import (
	"testing"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestApplyOrientationOverrideForcesTaxonomyAnswer(t *testing.T) {
	in := orientationInput{Indicator: models.Indicator{ID: "i1", Name: "Unemployment Rate"}, IndicatorType: "rate"}
	cand := orientationCandidate{Orientation: models.OrientationHigherIsPositive, Confidence: 0.9, Reasoning: "llm guess"}

	got := applyOrientationOverride(in, cand)

	assert.Equal(t, models.OrientationLowerIsPositive, got.HeatMapOrientation)
	assert.Contains(t, got.Reasoning, "taxonomy override")
}

func TestApplyOrientationOverrideLeavesUnmatchedIndicatorsAlone(t *testing.T) {
	in := orientationInput{Indicator: models.Indicator{ID: "i1", Name: "Gross Domestic Product"}, IndicatorType: "flow"}
	cand := orientationCandidate{Orientation: models.OrientationHigherIsPositive, Confidence: 0.8, Reasoning: "growth is good"}

	got := applyOrientationOverride(in, cand)

	assert.Equal(t, models.OrientationHigherIsPositive, got.HeatMapOrientation)
	assert.Equal(t, "growth is good", got.Reasoning)
}

func TestApplyOrientationOverrideCPIPPIDistinguishesRateFromIndex(t *testing.T) {
	rate := applyOrientationOverride(
		orientationInput{Indicator: models.Indicator{ID: "i1", Name: "CPI"}, IndicatorType: "rate"},
		orientationCandidate{Orientation: models.OrientationNeutral},
	)
	index := applyOrientationOverride(
		orientationInput{Indicator: models.Indicator{ID: "i2", Name: "CPI"}, IndicatorType: "index"},
		orientationCandidate{Orientation: models.OrientationHigherIsPositive},
	)

	assert.Equal(t, models.OrientationLowerIsPositive, rate.HeatMapOrientation)
	assert.Equal(t, models.OrientationNeutral, index.HeatMapOrientation)
}

func TestParseOrientationCandidateRejectsInvalidOrientation(t *testing.T) {
	raw := `{"indicator_id":"i1","heat_map_orientation":"sideways","confidence_orient":0.9,"reasoning":"r"}`
	_, valid := parseOrientationCandidate(raw)
	assert.False(t, valid)
}

func TestParseOrientationCandidateAcceptsValidResponse(t *testing.T) {
	raw := `{"indicator_id":"i1","heat_map_orientation":"neutral","confidence_orient":0.75,"reasoning":"fx rate has no inherent direction"}`
	cand, valid := parseOrientationCandidate(raw)
	assert.True(t, valid)
	assert.Equal(t, models.OrientationNeutral, cand.Orientation)
	assert.InDelta(t, 0.75, cand.Confidence, 1e-9)
}

func TestParseOrientationCandidateRejectsOutOfRangeConfidence(t *testing.T) {
	raw := `{"indicator_id":"i1","heat_map_orientation":"neutral","confidence_orient":1.2,"reasoning":"r"}`
	_, valid := parseOrientationCandidate(raw)
	assert.False(t, valid)
}
