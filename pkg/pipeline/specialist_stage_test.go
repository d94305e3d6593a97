package pipeline

import (
	"testing"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestForceTemporalAggregationTypeOnlyTable(t *testing.T) {
	cases := []struct {
		name     string
		typ      string
		llmValue models.TemporalAggregation
		want     models.TemporalAggregation
	}{
		{"ratio forces not-applicable", "ratio", models.TemporalPeriodTotal, models.TemporalNotApplicable},
		{"percentage forces not-applicable", "percentage", models.TemporalPointInTime, models.TemporalNotApplicable},
		{"share forces not-applicable", "share", models.TemporalPeriodAverage, models.TemporalNotApplicable},
		{"spread forces not-applicable", "spread", models.TemporalPeriodRate, models.TemporalNotApplicable},
		{"count forces period-total", "count", models.TemporalNotApplicable, models.TemporalPeriodTotal},
		{"volume forces period-total", "volume", models.TemporalPointInTime, models.TemporalPeriodTotal},
		{"unlisted type keeps llm answer", "index", models.TemporalPeriodAverage, models.TemporalPeriodAverage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := forceTemporalAggregation(models.FamilyCompositeDerived, tc.typ, tc.llmValue)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestForceTemporalAggregationFamilyTypeTableWinsOverTypeOnlyTable(t *testing.T) {
	cases := []struct {
		name     string
		family   models.Family
		typ      string
		llmValue models.TemporalAggregation
		want     models.TemporalAggregation
	}{
		{"price-value price forces point-in-time", models.FamilyPriceValue, "price", models.TemporalPeriodTotal, models.TemporalPointInTime},
		{"price-value yield forces point-in-time", models.FamilyPriceValue, "yield", models.TemporalPeriodAverage, models.TemporalPointInTime},
		{"physical-fundamental stock forces point-in-time", models.FamilyPhysicalFundamental, "stock", models.TemporalPeriodTotal, models.TemporalPointInTime},
		{"physical-fundamental flow forces period-total", models.FamilyPhysicalFundamental, "flow", models.TemporalPointInTime, models.TemporalPeriodTotal},
		{"change-movement rate forces period-rate", models.FamilyChangeMovement, "rate", models.TemporalPointInTime, models.TemporalPeriodRate},
		{"change-movement volume still forces period-total via type table", models.FamilyChangeMovement, "volume", models.TemporalPointInTime, models.TemporalPeriodTotal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := forceTemporalAggregation(tc.family, tc.typ, tc.llmValue)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsCurrencyDenominated(t *testing.T) {
	cases := []struct {
		name          string
		ind           models.Indicator
		indicatorType string
		wantValue     bool
		wantDecided   bool
	}{
		{
			name:          "explicit currency code decides true",
			ind:           models.Indicator{CurrencyCode: "XAF"},
			indicatorType: "category",
			wantValue:     true,
			wantDecided:   true,
		},
		{
			name:          "currency sigil in units decides true",
			ind:           models.Indicator{Units: "USD millions"},
			indicatorType: "count",
			wantValue:     true,
			wantDecided:   true,
		},
		{
			name:          "price term in name decides true regardless of type",
			ind:           models.Indicator{Name: "Brent Crude Price"},
			indicatorType: "category",
			wantValue:     true,
			wantDecided:   true,
		},
		{
			name:          "monetary term in name decides true only when type is monetary",
			ind:           models.Indicator{Name: "External debt stock"},
			indicatorType: "stock",
			wantValue:     true,
			wantDecided:   true,
		},
		{
			name:          "monetary term in name with non-monetary type does not decide",
			ind:           models.Indicator{Name: "Debt service ratio"},
			indicatorType: "ratio",
			wantValue:     false,
			wantDecided:   false,
		},
		{
			name:          "no signals leaves it undecided",
			ind:           models.Indicator{Name: "Population", Units: "millions"},
			indicatorType: "count",
			wantValue:     false,
			wantDecided:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			value, decided := isCurrencyDenominated(tc.ind, tc.indicatorType)
			assert.Equal(t, tc.wantDecided, decided)
			if decided {
				assert.Equal(t, tc.wantValue, value)
			}
		})
	}
}

func TestParseSpecialistCandidateRejectsTypeOutsideSet(t *testing.T) {
	raw := `{"indicator_id":"i1","indicator_type":"price","indicator_category":"c","temporal_aggregation":"point-in-time","is_currency_denominated":true,"confidence_cls":0.9,"reasoning":"r"}`
	_, valid := parseSpecialistCandidate(raw, []string{"stock", "flow", "balance"})
	assert.False(t, valid)
}

func TestParseSpecialistCandidateAcceptsValidResponse(t *testing.T) {
	raw := `{"indicator_id":"i1","indicator_type":"stock","indicator_category":"reserves","temporal_aggregation":"point-in-time","is_currency_denominated":true,"confidence_cls":0.92,"reasoning":"r"}`
	cand, valid := parseSpecialistCandidate(raw, []string{"stock", "flow", "balance"})
	assert.True(t, valid)
	assert.Equal(t, "stock", cand.IndicatorType)
	assert.Equal(t, models.TemporalPointInTime, cand.TemporalAggregation)
	assert.True(t, cand.IsCurrencyDenominated)
	assert.InDelta(t, 0.92, cand.Confidence, 1e-9)
}

func TestParseSpecialistCandidateRejectsOutOfRangeConfidence(t *testing.T) {
	raw := `{"indicator_id":"i1","indicator_type":"stock","temporal_aggregation":"point-in-time","confidence_cls":1.4,"reasoning":"r"}`
	_, valid := parseSpecialistCandidate(raw, []string{"stock"})
	assert.False(t, valid)
}

func TestParseSpecialistCandidateRejectsUnrecognizedTemporalAggregation(t *testing.T) {
	raw := `{"indicator_id":"i1","indicator_type":"stock","temporal_aggregation":"quarterly","confidence_cls":0.9,"reasoning":"r"}`
	_, valid := parseSpecialistCandidate(raw, []string{"stock"})
	assert.False(t, valid)
}
