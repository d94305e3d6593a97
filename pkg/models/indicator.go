// Package models defines the data model shared across the classification
// pipeline: indicators, per-stage results, and the final merged classification.
package models

import "time"

// Sample is a single observation in an indicator's time series. Date is
// either an ISO date ("2024-03-01") or a symbolic token such as
// "last10YearsAvg" — see pkg/timeseries for how the two are told apart.
type Sample struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Indicator is the immutable input record for a single pipeline run.
type Indicator struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Units             string   `json:"units,omitempty"`
	Periodicity       string   `json:"periodicity,omitempty"`
	CategoryGroup     string   `json:"category_group,omitempty"`
	Topic             string   `json:"topic,omitempty"`
	AggregationMethod string   `json:"aggregation_method,omitempty"`
	Scale             string   `json:"scale,omitempty"`
	CurrencyCode      string   `json:"currency_code,omitempty"`
	Dataset           string   `json:"dataset,omitempty"`
	Description       string   `json:"description,omitempty"`
	SampleValues      []Sample `json:"sample_values,omitempty"`
}

// Family is the Router's top-level classification bucket.
type Family string

// Recognized families, closed enumeration.
const (
	FamilyPhysicalFundamental Family = "physical-fundamental"
	FamilyNumericMeasurement  Family = "numeric-measurement"
	FamilyPriceValue          Family = "price-value"
	FamilyChangeMovement      Family = "change-movement"
	FamilyCompositeDerived    Family = "composite-derived"
	FamilyTemporal            Family = "temporal"
	FamilyQualitative         Family = "qualitative"
)

// AllFamilies lists the closed family enumeration in a stable order.
var AllFamilies = []Family{
	FamilyPhysicalFundamental,
	FamilyNumericMeasurement,
	FamilyPriceValue,
	FamilyChangeMovement,
	FamilyCompositeDerived,
	FamilyTemporal,
	FamilyQualitative,
}

// IsValid reports whether f is one of the seven recognized families.
func (f Family) IsValid() bool {
	for _, candidate := range AllFamilies {
		if candidate == f {
			return true
		}
	}
	return false
}

// TemporalAggregation describes how an indicator's values accumulate over time.
type TemporalAggregation string

// Recognized temporal aggregations.
const (
	TemporalPointInTime      TemporalAggregation = "point-in-time"
	TemporalPeriodRate       TemporalAggregation = "period-rate"
	TemporalPeriodCumulative TemporalAggregation = "period-cumulative"
	TemporalPeriodAverage    TemporalAggregation = "period-average"
	TemporalPeriodTotal      TemporalAggregation = "period-total"
	TemporalNotApplicable    TemporalAggregation = "not-applicable"
)

// AllTemporalAggregations lists the closed enumeration in a stable order.
var AllTemporalAggregations = []TemporalAggregation{
	TemporalPointInTime,
	TemporalPeriodRate,
	TemporalPeriodCumulative,
	TemporalPeriodAverage,
	TemporalPeriodTotal,
	TemporalNotApplicable,
}

// IsValid reports whether t is a recognized temporal aggregation.
func (t TemporalAggregation) IsValid() bool {
	for _, candidate := range AllTemporalAggregations {
		if candidate == t {
			return true
		}
	}
	return false
}

// Orientation describes whether higher, lower, or neither value is "good"
// on a heat-map.
type Orientation string

// Recognized orientations.
const (
	OrientationHigherIsPositive Orientation = "higher-is-positive"
	OrientationLowerIsPositive  Orientation = "lower-is-positive"
	OrientationNeutral          Orientation = "neutral"
)

// IsValid reports whether o is a recognized orientation.
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationHigherIsPositive, OrientationLowerIsPositive, OrientationNeutral:
		return true
	}
	return false
}

// Severity is a FlaggedIndicator's urgency level.
type Severity string

// Recognized severities, ordered least to most urgent.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// ReviewAction is the outcome of a Review decision.
type ReviewAction string

// Recognized review actions.
const (
	ReviewAccept   ReviewAction = "accept"
	ReviewFix      ReviewAction = "fix"
	ReviewEscalate ReviewAction = "escalate"
)

// RouterResult is the Router stage's output for one indicator.
type RouterResult struct {
	IndicatorID      string    `json:"indicator_id"`
	Family           Family    `json:"family"`
	ConfidenceFamily float64   `json:"confidence_family"`
	Reasoning        string    `json:"reasoning,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SpecialistResult is the Specialist stage's output for one indicator.
type SpecialistResult struct {
	IndicatorID           string              `json:"indicator_id"`
	Family                Family              `json:"family"`
	IndicatorType         string              `json:"indicator_type"`
	IndicatorCategory     string              `json:"indicator_category,omitempty"`
	TemporalAggregation   TemporalAggregation `json:"temporal_aggregation"`
	IsCurrencyDenominated bool                `json:"is_currency_denominated"`
	ConfidenceCls         float64             `json:"confidence_cls"`
	Reasoning             string              `json:"reasoning,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

// ValidationResult is the Validation stage's output for one indicator.
// Produced entirely from sample_values; never touched by an LLM.
type ValidationResult struct {
	IndicatorID         string              `json:"indicator_id"`
	IsCumulative        bool                `json:"is_cumulative"`
	CumulativeConfidence float64            `json:"cumulative_confidence"`
	SuggestedTemporal   TemporalAggregation `json:"suggested_temporal,omitempty"`
	ValidationReasoning string              `json:"validation_reasoning,omitempty"`
	Analyzed            bool                `json:"analyzed"`
	MagnitudeSuspicious bool                `json:"magnitude_suspicious"`
	MagnitudeReasoning  string              `json:"magnitude_reasoning,omitempty"`
}

// OrientationResult is the Orientation stage's output for one indicator.
type OrientationResult struct {
	IndicatorID       string      `json:"indicator_id"`
	HeatMapOrientation Orientation `json:"heat_map_orientation"`
	ConfidenceOrient  float64     `json:"confidence_orient"`
	Reasoning         string      `json:"reasoning,omitempty"`
}

// FlaggedIndicator is a structured note attached to a candidate
// classification by the rule-based Flagging stage.
type FlaggedIndicator struct {
	ID            string   `json:"id"`
	IndicatorID   string   `json:"indicator_id"`
	FlagType      string   `json:"flag_type"`
	FlagReason    string   `json:"flag_reason"`
	CurrentValue  string   `json:"current_value"`
	ExpectedValue *string  `json:"expected_value,omitempty"`
	Severity      Severity `json:"severity"`
}

// ReviewDecision is the Review stage's verdict on one FlaggedIndicator.
type ReviewDecision struct {
	IndicatorID string       `json:"indicator_id"`
	Action      ReviewAction `json:"action"`
	TargetField string       `json:"target_field,omitempty"`
	OldValue    string       `json:"old_value,omitempty"`
	NewValue    string       `json:"new_value,omitempty"`
	Reasoning   string       `json:"reasoning"`
	Confidence  float64      `json:"confidence"`
}

// Classification is the final, one-row-per-indicator union of committed
// stage outputs, optionally overwritten by a Review "fix" action.
type Classification struct {
	ExecutionID            string              `json:"execution_id"`
	IndicatorID             string              `json:"indicator_id"`
	Family                  Family              `json:"family"`
	IndicatorType           string              `json:"indicator_type"`
	IndicatorCategory       string              `json:"indicator_category,omitempty"`
	TemporalAggregation     TemporalAggregation `json:"temporal_aggregation"`
	IsCurrencyDenominated   bool                `json:"is_currency_denominated"`
	HeatMapOrientation      Orientation         `json:"heat_map_orientation"`
	ConfidenceFamily        float64             `json:"confidence_family"`
	ConfidenceCls           float64             `json:"confidence_cls"`
	ConfidenceOrient        float64             `json:"confidence_orient"`
	Excluded                bool                `json:"excluded"`
	ExclusionReason         string              `json:"exclusion_reason,omitempty"`
	ReviewedAction          ReviewAction        `json:"reviewed_action,omitempty"`
	CreatedAt               time.Time           `json:"created_at"`
}

// FailedIndicator carries an item that exhausted its retry budget at some
// stage, surfaced to the stage caller instead of a result row.
type FailedIndicator struct {
	IndicatorID string `json:"indicator_id"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
	Retries     int    `json:"retries"`
}

// PipelineExecution is the telemetry record for one end-to-end pipeline run.
type PipelineExecution struct {
	ExecutionID  string         `json:"execution_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	StageCounts  map[string]int `json:"stage_counts"`
	APICalls     int            `json:"api_calls"`
	TokensIn     int            `json:"tokens_in"`
	TokensOut    int            `json:"tokens_out"`
	CostEstimate float64        `json:"cost_estimate"`
}
