package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

// FlagCandidate is the merged, not-yet-persisted classification row
// Flagging's rules evaluate. It carries IndicatorName alongside
// models.Classification because the orientation-override rule needs it and
// the classifications table has no name column of its own.
type FlagCandidate struct {
	models.Classification
	IndicatorName string
}

// Rule is one flagging check, a pure function of the merged candidate row
// and its Validation evidence. Rules are evaluated independently; a
// candidate can accumulate flags from more than one rule.
type Rule interface {
	Name() string
	Evaluate(candidate FlagCandidate, v *models.ValidationResult) *models.FlaggedIndicator
}

// BuildRules returns the fixed, ordered rule catalog (§4.6), configured
// with thresholds's confidence floors. Adding a rule means appending to
// this slice, not touching RunFlagging's dispatch loop.
func BuildRules(thresholds *config.ThresholdsConfig) []Rule {
	return []Rule{
		missingFieldRule{},
		confidenceBelowThresholdRule{thresholds: thresholds},
		typeFamilyMismatchRule{},
		temporalRuleViolationRule{},
		validationSuggestsDifferentTemporalRule{},
		orientationConflictsWithOverrideRule{},
	}
}

func flag(indicatorID, flagType, reason, current string, expected *string, severity models.Severity) *models.FlaggedIndicator {
	return &models.FlaggedIndicator{
		IndicatorID:   indicatorID,
		FlagType:      flagType,
		FlagReason:    reason,
		CurrentValue:  current,
		ExpectedValue: expected,
		Severity:      severity,
	}
}

// missingFieldRule blocks a candidate left with an empty required field —
// the signature of a stage that exhausted retries with no prior candidate
// to fall back on.
type missingFieldRule struct{}

func (missingFieldRule) Name() string { return "missing-field" }

func (r missingFieldRule) Evaluate(c FlagCandidate, _ *models.ValidationResult) *models.FlaggedIndicator {
	switch {
	case c.Family == "":
		return flag(c.IndicatorID, r.Name(), "family is empty", "", nil, models.SeverityBlock)
	case c.IndicatorType == "":
		return flag(c.IndicatorID, r.Name(), "indicator_type is empty", "", nil, models.SeverityBlock)
	case c.TemporalAggregation == "":
		return flag(c.IndicatorID, r.Name(), "temporal_aggregation is empty", "", nil, models.SeverityBlock)
	case c.HeatMapOrientation == "":
		return flag(c.IndicatorID, r.Name(), "heat_map_orientation is empty", "", nil, models.SeverityBlock)
	}
	return nil
}

// confidenceBelowThresholdRule warns when any stage's confidence fell
// short of its acceptance floor but the row was still written (e.g. a
// retried-out item that kept its last observed candidate).
type confidenceBelowThresholdRule struct {
	thresholds *config.ThresholdsConfig
}

func (confidenceBelowThresholdRule) Name() string { return "confidence-below-threshold" }

func (r confidenceBelowThresholdRule) Evaluate(c FlagCandidate, _ *models.ValidationResult) *models.FlaggedIndicator {
	clsMin := r.thresholds.ForFamily(string(c.Family))
	switch {
	case c.ConfidenceFamily < r.thresholds.ConfidenceFamilyMin:
		return flag(c.IndicatorID, r.Name(), fmt.Sprintf("confidence_family %.2f below %.2f", c.ConfidenceFamily, r.thresholds.ConfidenceFamilyMin), fmt.Sprintf("%.2f", c.ConfidenceFamily), nil, models.SeverityWarn)
	case c.ConfidenceCls < clsMin:
		return flag(c.IndicatorID, r.Name(), fmt.Sprintf("confidence_cls %.2f below %.2f", c.ConfidenceCls, clsMin), fmt.Sprintf("%.2f", c.ConfidenceCls), nil, models.SeverityWarn)
	case c.ConfidenceOrient < r.thresholds.ConfidenceOrientMin:
		return flag(c.IndicatorID, r.Name(), fmt.Sprintf("confidence_orient %.2f below %.2f", c.ConfidenceOrient, r.thresholds.ConfidenceOrientMin), fmt.Sprintf("%.2f", c.ConfidenceOrient), nil, models.SeverityWarn)
	}
	return nil
}

// typeFamilyMismatchRule blocks a candidate whose indicator_type doesn't
// belong to its family's closed enumeration — only possible if Specialist
// and Router disagreed, or a placeholder type was substituted for the
// wrong family.
type typeFamilyMismatchRule struct{}

func (typeFamilyMismatchRule) Name() string { return "type-family-mismatch" }

func (r typeFamilyMismatchRule) Evaluate(c FlagCandidate, _ *models.ValidationResult) *models.FlaggedIndicator {
	if c.Family == "" || c.IndicatorType == "" {
		return nil // missing-field rule already covers this case
	}
	if taxonomy.Builtin().ValidType(c.Family, c.IndicatorType) {
		return nil
	}
	expected := fmt.Sprintf("one of %v", taxonomy.Builtin().TypesFor(c.Family))
	return flag(c.IndicatorID, r.Name(), fmt.Sprintf("indicator_type %q is not valid for family %q", c.IndicatorType, c.Family), c.IndicatorType, &expected, models.SeverityBlock)
}

// temporalRuleViolationRule blocks a candidate whose temporal_aggregation
// disagrees with the deterministic forcing table (§4.3) — a defense
// against a future code path writing a type/temporal pair the Specialist
// stage's own override should have caught.
type temporalRuleViolationRule struct{}

func (temporalRuleViolationRule) Name() string { return "temporal-rule-violation" }

func (r temporalRuleViolationRule) Evaluate(c FlagCandidate, _ *models.ValidationResult) *models.FlaggedIndicator {
	if c.Family == "" || c.IndicatorType == "" || c.TemporalAggregation == "" {
		return nil
	}
	forced := forceTemporalAggregation(c.Family, c.IndicatorType, c.TemporalAggregation)
	if forced == c.TemporalAggregation {
		return nil
	}
	expected := string(forced)
	return flag(c.IndicatorID, r.Name(), fmt.Sprintf("temporal_aggregation %q violates the forcing rule for type %q", c.TemporalAggregation, c.IndicatorType), string(c.TemporalAggregation), &expected, models.SeverityBlock)
}

// validationSuggestsDifferentTemporalRule warns when Validation's
// intra-year step analysis suggests period-cumulative but Specialist
// assigned something else — Validation never overwrites Specialist's
// output, it only surfaces the disagreement for Review.
type validationSuggestsDifferentTemporalRule struct{}

func (validationSuggestsDifferentTemporalRule) Name() string {
	return "validation-suggests-different-temporal"
}

func (r validationSuggestsDifferentTemporalRule) Evaluate(c FlagCandidate, v *models.ValidationResult) *models.FlaggedIndicator {
	if v == nil || v.SuggestedTemporal == "" {
		return nil
	}
	if v.SuggestedTemporal == c.TemporalAggregation {
		return nil
	}
	expected := string(v.SuggestedTemporal)
	return flag(c.IndicatorID, r.Name(), fmt.Sprintf("validation suggests %q from cumulative step analysis (confidence %.2f)", v.SuggestedTemporal, v.CumulativeConfidence), string(c.TemporalAggregation), &expected, models.SeverityWarn)
}

// orientationConflictsWithOverrideRule warns when the committed
// heat_map_orientation disagrees with what the fixed taxonomy override
// table (§4.5) would force for this indicator's name/type — normally
// impossible since the Orientation stage applies the same table, but a
// stash fallback from an exhausted retry can still diverge.
type orientationConflictsWithOverrideRule struct{}

func (orientationConflictsWithOverrideRule) Name() string {
	return "orientation-conflicts-with-override"
}

func (r orientationConflictsWithOverrideRule) Evaluate(c FlagCandidate, _ *models.ValidationResult) *models.FlaggedIndicator {
	forced, matched := taxonomy.MatchOrientationOverride(c.IndicatorName, c.IndicatorType)
	if !matched || forced == c.HeatMapOrientation {
		return nil
	}
	expected := string(forced)
	return flag(c.IndicatorID, r.Name(), fmt.Sprintf("taxonomy override requires heat_map_orientation %q for this name/type", forced), string(c.HeatMapOrientation), &expected, models.SeverityWarn)
}

// BuildFlagCandidates merges one stage pass's committed outputs into one
// FlagCandidate per indicator. A stage output missing for an indicator ID
// leaves that candidate's corresponding field at its zero value, which
// missingFieldRule then catches.
func BuildFlagCandidates(executionID string, items []models.Indicator, router []models.RouterResult, specialist []models.SpecialistResult, orientation []models.OrientationResult, now time.Time) []FlagCandidate {
	routerByID := make(map[string]models.RouterResult, len(router))
	for _, r := range router {
		routerByID[r.IndicatorID] = r
	}
	specialistByID := make(map[string]models.SpecialistResult, len(specialist))
	for _, s := range specialist {
		specialistByID[s.IndicatorID] = s
	}
	orientationByID := make(map[string]models.OrientationResult, len(orientation))
	for _, o := range orientation {
		orientationByID[o.IndicatorID] = o
	}

	out := make([]FlagCandidate, len(items))
	for i, ind := range items {
		r := routerByID[ind.ID]
		s := specialistByID[ind.ID]
		o := orientationByID[ind.ID]
		out[i] = FlagCandidate{
			IndicatorName: ind.Name,
			Classification: models.Classification{
				ExecutionID:           executionID,
				IndicatorID:           ind.ID,
				Family:                r.Family,
				IndicatorType:         s.IndicatorType,
				IndicatorCategory:     s.IndicatorCategory,
				TemporalAggregation:   s.TemporalAggregation,
				IsCurrencyDenominated: s.IsCurrencyDenominated,
				HeatMapOrientation:    o.HeatMapOrientation,
				ConfidenceFamily:      r.ConfidenceFamily,
				ConfidenceCls:         s.ConfidenceCls,
				ConfidenceOrient:      o.ConfidenceOrient,
				CreatedAt:             now,
			},
		}
	}
	return out
}

// FlaggingDeps groups the Flagging stage's collaborators.
type FlaggingDeps struct {
	Cfg  *config.Config
	Repo *storage.FlaggingRepo
}

// RunFlagging evaluates every rule in BuildRules against each candidate
// and persists the flags that fire. The flag set is immutable once
// produced, so a rerun skips (indicator_id, flag_type) pairs already
// committed rather than duplicating them.
func RunFlagging(ctx context.Context, executionID string, candidates []FlagCandidate, validationByID map[string]models.ValidationResult, deps FlaggingDeps) ([]models.FlaggedIndicator, error) {
	existing, err := deps.Repo.ListByExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("loading existing flags: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f.IndicatorID+"|"+f.FlagType] = true
	}

	rules := BuildRules(deps.Cfg.Thresholds)

	var flagged []models.FlaggedIndicator
	for _, c := range candidates {
		var v *models.ValidationResult
		if val, ok := validationByID[c.IndicatorID]; ok {
			v = &val
		}
		for _, rule := range rules {
			f := rule.Evaluate(c, v)
			if f == nil {
				continue
			}
			key := f.IndicatorID + "|" + f.FlagType
			if seen[key] {
				continue
			}
			seen[key] = true

			stored, err := deps.Repo.Put(ctx, executionID, *f)
			if err != nil {
				return flagged, fmt.Errorf("persisting flag %s/%s: %w", f.IndicatorID, f.FlagType, err)
			}
			flagged = append(flagged, stored)
		}
	}
	return flagged, nil
}
