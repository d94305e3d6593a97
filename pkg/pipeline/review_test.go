package pipeline

import (
	"testing"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/stretchr/testify/assert"
)

func candidateFor(id string, family models.Family) FlagCandidate {
	return FlagCandidate{
		IndicatorName: "Unemployment Rate",
		Classification: models.Classification{
			IndicatorID:         id,
			Family:              family,
			IndicatorType:       "percentage",
			TemporalAggregation: models.TemporalNotApplicable,
			HeatMapOrientation:  models.OrientationLowerIsPositive,
		},
	}
}

func TestBuildReviewItemsSkipsUnflaggedAndInfoOnlyCandidates(t *testing.T) {
	candidates := []FlagCandidate{candidateFor("i1", models.FamilyNumericMeasurement), candidateFor("i2", models.FamilyNumericMeasurement)}
	flags := []models.FlaggedIndicator{
		{IndicatorID: "i1", FlagType: "confidence-below-threshold", Severity: models.SeverityWarn},
		{IndicatorID: "i2", FlagType: "info-only", Severity: models.SeverityInfo},
	}

	items := BuildReviewItems(candidates, flags, nil)

	assert.Len(t, items, 1)
	assert.Equal(t, "i1", items[0].Candidate.IndicatorID)
}

func TestBuildReviewItemsIsSortedByIndicatorID(t *testing.T) {
	candidates := []FlagCandidate{candidateFor("z", models.FamilyNumericMeasurement), candidateFor("a", models.FamilyNumericMeasurement)}
	flags := []models.FlaggedIndicator{
		{IndicatorID: "z", FlagType: "x", Severity: models.SeverityWarn},
		{IndicatorID: "a", FlagType: "x", Severity: models.SeverityWarn},
	}

	items := BuildReviewItems(candidates, flags, nil)

	assert.Equal(t, []string{"a", "z"}, []string{items[0].Candidate.IndicatorID, items[1].Candidate.IndicatorID})
}

func TestFinalizeReviewDecisionDowngradesLowConfidenceToEscalate(t *testing.T) {
	it := ReviewItem{Candidate: candidateFor("i1", models.FamilyNumericMeasurement)}
	cand := reviewCandidate{Action: models.ReviewFix, TargetField: "indicator_type", NewValue: "ratio", Confidence: 0.3}

	decision := finalizeReviewDecision(it, cand, 0.6, false)

	assert.Equal(t, models.ReviewEscalate, decision.Action)
	assert.Empty(t, decision.TargetField)
	assert.Empty(t, decision.NewValue)
}

func TestFinalizeReviewDecisionReviewAllFlagForcesEscalate(t *testing.T) {
	it := ReviewItem{Candidate: candidateFor("i1", models.FamilyNumericMeasurement)}
	cand := reviewCandidate{Action: models.ReviewAccept, Confidence: 0.95}

	decision := finalizeReviewDecision(it, cand, 0.6, true)

	assert.Equal(t, models.ReviewEscalate, decision.Action)
}

// TestFinalizeReviewDecisionDowngradesInvalidFixValue verifies §8 property
// 7: a fix whose new_value fails its field's enumeration never commits.
func TestFinalizeReviewDecisionDowngradesInvalidFixValue(t *testing.T) {
	it := ReviewItem{Candidate: candidateFor("i1", models.FamilyNumericMeasurement)}
	cand := reviewCandidate{Action: models.ReviewFix, TargetField: "heat_map_orientation", NewValue: "sideways", Confidence: 0.9}

	decision := finalizeReviewDecision(it, cand, 0.6, false)

	assert.Equal(t, models.ReviewEscalate, decision.Action)
	assert.Empty(t, decision.TargetField)
	assert.Empty(t, decision.NewValue)
}

func TestFinalizeReviewDecisionAcceptsValidFix(t *testing.T) {
	it := ReviewItem{Candidate: candidateFor("i1", models.FamilyNumericMeasurement)}
	cand := reviewCandidate{Action: models.ReviewFix, TargetField: "temporal_aggregation", NewValue: string(models.TemporalPeriodTotal), Confidence: 0.9}

	decision := finalizeReviewDecision(it, cand, 0.6, false)

	assert.Equal(t, models.ReviewFix, decision.Action)
	assert.Equal(t, "temporal_aggregation", decision.TargetField)
	assert.Equal(t, string(models.TemporalPeriodTotal), decision.NewValue)
	assert.Equal(t, string(models.TemporalNotApplicable), decision.OldValue)
}

func TestValidFixValueRejectsTypeNotInFamily(t *testing.T) {
	assert.False(t, validFixValue(models.FamilyNumericMeasurement, "indicator_type", "not-a-real-type"))
}

func TestValidFixValueAcceptsBooleanStrings(t *testing.T) {
	assert.True(t, validFixValue(models.FamilyPriceValue, "is_currency_denominated", "true"))
	assert.False(t, validFixValue(models.FamilyPriceValue, "is_currency_denominated", "yes"))
}

func TestParseReviewCandidateRejectsUnknownAction(t *testing.T) {
	raw := `{"indicator_id":"i1","action":"reject","confidence":0.9}`
	_, valid := parseReviewCandidate(raw)
	assert.False(t, valid)
}

func TestParseReviewCandidateRejectsOutOfRangeConfidence(t *testing.T) {
	raw := `{"indicator_id":"i1","action":"accept","confidence":1.5}`
	_, valid := parseReviewCandidate(raw)
	assert.False(t, valid)
}

func TestParseReviewCandidateAcceptsValidFix(t *testing.T) {
	raw := `{"indicator_id":"i1","action":"fix","target_field":"family","new_value":"price-value","reasoning":"looked like a price series","confidence":0.82}`
	cand, valid := parseReviewCandidate(raw)
	assert.True(t, valid)
	assert.Equal(t, models.ReviewFix, cand.Action)
	assert.Equal(t, "family", cand.TargetField)
	assert.InDelta(t, 0.82, cand.Confidence, 1e-9)
}
