package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/codeready-toolchain/classify/pkg/batch"
	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
	"github.com/tidwall/gjson"
)

type specialistCandidate struct {
	IndicatorType         string
	IndicatorCategory     string
	TemporalAggregation   models.TemporalAggregation
	IsCurrencyDenominated bool
	Confidence            float64
	Reasoning             string
}

// SpecialistDeps groups the Specialist stage's collaborators.
type SpecialistDeps struct {
	Providers  *ProviderSet
	Cfg        *config.Config
	Masking    *masking.Service
	Repo       *storage.SpecialistRepo
	Registry   SpecialistRegistry
	Executions *storage.ExecutionRepo
}

// RunSpecialist assigns indicator_type, indicator_category, temporal
// aggregation, and currency denomination, grouping items by the family
// routed determined and dispatching each group to its family's
// Specialist. Deterministic post-processing (the temporal-aggregation
// forcing table and the currency-denomination heuristic) runs after the
// LLM response and can override it.
func RunSpecialist(ctx context.Context, executionID string, items []models.Indicator, routed []models.RouterResult, deps SpecialistDeps) ([]models.SpecialistResult, []models.FailedIndicator, error) {
	familyOf := make(map[string]models.Family, len(routed))
	for _, r := range routed {
		familyOf[r.IndicatorID] = r.Family
	}

	items, _, err := skipExisting(ctx, items, func() (map[string]bool, error) {
		rows, err := deps.Repo.ListByExecution(ctx, executionID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(rows))
		for _, r := range rows {
			seen[r.IndicatorID] = true
		}
		return seen, nil
	})
	if err != nil {
		return nil, nil, err
	}

	byFamily := make(map[models.Family][]models.Indicator)
	for _, ind := range items {
		f, ok := familyOf[ind.ID]
		if !ok {
			f = models.FamilyQualitative
		}
		byFamily[f] = append(byFamily[f], ind)
	}

	var mu sync.Mutex
	var allResults []models.SpecialistResult
	var allFailed []models.FailedIndicator

	for family, group := range byFamily {
		specialist, ok := deps.Registry[family]
		if !ok {
			return nil, nil, fmt.Errorf("specialist: no specialist registered for family %q", family)
		}

		chunks := chunk(group, deps.Cfg.Batch.SpecialistBatchSize)
		pool := batch.New("specialist:"+string(family), deps.Cfg.Concurrency.Specialist)
		ids := make([]string, len(chunks))
		for i := range chunks {
			ids[i] = strconv.Itoa(i)
		}

		errs := pool.Run(ctx, ids, func(ctx context.Context, idStr string) error {
			idx, _ := strconv.Atoi(idStr)
			rs, fs, err := processSpecialistChunk(ctx, executionID, family, chunks[idx], specialist, deps)
			if err != nil {
				return err
			}
			mu.Lock()
			allResults = append(allResults, rs...)
			allFailed = append(allFailed, fs...)
			mu.Unlock()
			return nil
		})
		if len(errs) > 0 {
			return allResults, allFailed, fmt.Errorf("specialist(%s): %d of %d batches failed irrecoverably: %w", family, len(errs), len(chunks), errs[0].Err)
		}
	}

	for _, r := range allResults {
		if err := deps.Repo.Put(ctx, executionID, r.IndicatorID, r); err != nil {
			return allResults, allFailed, fmt.Errorf("persisting specialist result %s: %w", r.IndicatorID, err)
		}
	}

	return allResults, allFailed, nil
}

func processSpecialistChunk(ctx context.Context, executionID string, family models.Family, batchItems []models.Indicator, specialist Specialist, deps SpecialistDeps) ([]models.SpecialistResult, []models.FailedIndicator, error) {
	provider, pc, err := deps.Providers.ForStage(deps.Cfg, "specialist")
	if err != nil {
		return nil, nil, err
	}

	threshold := deps.Cfg.Thresholds.ForFamily(string(family))
	byID := make(map[string]models.Indicator, len(batchItems))
	for _, ind := range batchItems {
		byID[ind.ID] = ind
	}

	var stashMu sync.Mutex
	stash := make(map[string]specialistCandidate)
	remember := func(id string, cand specialistCandidate) {
		stashMu.Lock()
		stash[id] = cand
		stashMu.Unlock()
	}

	idFunc := func(ind models.Indicator) string { return ind.ID }

	parseGroup := func(ctx context.Context, group []models.Indicator) (map[string]specialistCandidate, error) {
		system, user := specialist.BuildPrompt(group, deps.Masking)
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, system, user)
		if err != nil {
			return nil, fmt.Errorf("specialist(%s) request: %w", family, err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("specialist(%s) response: %w", family, err)
		}
		paired, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return nil, fmt.Errorf("specialist(%s) pairing: %w", family, err)
		}

		out := make(map[string]specialistCandidate)
		for id, raw := range paired {
			cand, valid := parseSpecialistCandidate(raw, specialist.TypeSet())
			if !valid {
				continue
			}
			remember(id, cand)
			if cand.Confidence >= threshold {
				out[id] = cand
			}
		}
		return out, nil
	}

	batchFn := parseGroup
	itemFn := func(ctx context.Context, ind models.Indicator) (specialistCandidate, error) {
		result, err := parseGroup(ctx, []models.Indicator{ind})
		if err != nil {
			return specialistCandidate{}, err
		}
		cand, ok := result[ind.ID]
		if !ok {
			stashMu.Lock()
			last, hadLast := stash[ind.ID]
			stashMu.Unlock()
			if hadLast {
				return specialistCandidate{}, fmt.Errorf("specialist(%s) item %s confidence %.2f below threshold %.2f", family, ind.ID, last.Confidence, threshold)
			}
			return specialistCandidate{}, fmt.Errorf("specialist(%s) item %s: no parseable response", family, ind.ID)
		}
		return cand, nil
	}

	resultsMap, failed := llmgw.BatchWithFallback(ctx, batchItems, idFunc, retryConfigOf(deps.Cfg), batchFn, itemFn)

	now := time.Now()
	results := make([]models.SpecialistResult, 0, len(batchItems))
	for id, cand := range resultsMap {
		results = append(results, toSpecialistResult(id, family, byID[id], cand, now))
	}

	var failedIndicators []models.FailedIndicator
	for _, f := range failed {
		failedIndicators = append(failedIndicators, models.FailedIndicator{
			IndicatorID: f.ID, Stage: "specialist", Error: f.Err.Error(), Retries: f.Retries,
		})

		stashMu.Lock()
		cand, hadCandidate := stash[f.ID]
		stashMu.Unlock()

		if hadCandidate {
			results = append(results, toSpecialistResult(f.ID, family, byID[f.ID], cand, now))
			continue
		}
		results = append(results, models.SpecialistResult{
			IndicatorID:         f.ID,
			Family:              family,
			IndicatorType:       taxonomy.Builtin().PlaceholderType(family),
			TemporalAggregation: models.TemporalNotApplicable,
			ConfidenceCls:       0,
			Reasoning:           "specialist-failure: " + f.Err.Error(),
			CreatedAt:           now,
		})
	}

	return results, failedIndicators, nil
}

func toSpecialistResult(id string, family models.Family, ind models.Indicator, cand specialistCandidate, now time.Time) models.SpecialistResult {
	temporal := forceTemporalAggregation(family, cand.IndicatorType, cand.TemporalAggregation)
	currency := cand.IsCurrencyDenominated
	if override, decided := isCurrencyDenominated(ind, cand.IndicatorType); decided {
		currency = override
	}
	return models.SpecialistResult{
		IndicatorID:           id,
		Family:                family,
		IndicatorType:         cand.IndicatorType,
		IndicatorCategory:     cand.IndicatorCategory,
		TemporalAggregation:   temporal,
		IsCurrencyDenominated: currency,
		ConfidenceCls:         cand.Confidence,
		Reasoning:             cand.Reasoning,
		CreatedAt:             now,
	}
}

func parseSpecialistCandidate(raw string, typeSet []string) (specialistCandidate, bool) {
	indicatorType := gjson.Get(raw, "indicator_type").String()
	category := gjson.Get(raw, "indicator_category").String()
	temporal := models.TemporalAggregation(gjson.Get(raw, "temporal_aggregation").String())
	currency := gjson.Get(raw, "is_currency_denominated").Bool()
	confidence := gjson.Get(raw, "confidence_cls").Float()
	reasoning := gjson.Get(raw, "reasoning").String()

	if err := validateEnum("indicator_type", indicatorType, typeSet...); err != nil {
		return specialistCandidate{}, false
	}
	if !temporal.IsValid() {
		return specialistCandidate{}, false
	}
	if err := validateRange("confidence_cls", confidence, 0, 1); err != nil {
		return specialistCandidate{}, false
	}

	return specialistCandidate{
		IndicatorType:         indicatorType,
		IndicatorCategory:     category,
		TemporalAggregation:   temporal,
		IsCurrencyDenominated: currency,
		Confidence:            confidence,
		Reasoning:             reasoning,
	}, true
}

// temporalForcingTable overrides temporal_aggregation deterministically by
// indicator_type, independent of family. A ratio, percentage, share, or
// spread never accumulates over a period; a count or volume is always a
// period total.
var temporalForcingTable = map[string]models.TemporalAggregation{
	"ratio":      models.TemporalNotApplicable,
	"percentage": models.TemporalNotApplicable,
	"share":      models.TemporalNotApplicable,
	"spread":     models.TemporalNotApplicable,
	"count":      models.TemporalPeriodTotal,
	"volume":     models.TemporalPeriodTotal,
}

// familyTypeForcingTable overrides temporal_aggregation for indicator_type
// values whose correct aggregation depends on the family they were routed
// into (a "rate" under change-movement is a period rate; a "rate" would
// not appear under any other family per the taxonomy's closed type sets).
type familyType struct {
	family models.Family
	typ    string
}

var familyTypeForcingTable = map[familyType]models.TemporalAggregation{
	{models.FamilyPriceValue, "price"}:             models.TemporalPointInTime,
	{models.FamilyPriceValue, "yield"}:             models.TemporalPointInTime,
	{models.FamilyPhysicalFundamental, "stock"}:    models.TemporalPointInTime,
	{models.FamilyPhysicalFundamental, "flow"}:     models.TemporalPeriodTotal,
	{models.FamilyChangeMovement, "rate"}:          models.TemporalPeriodRate,
}

// forceTemporalAggregation applies the deterministic overrides, in order:
// the type-only table, then the family+type table, which wins when both
// match. llmValue is the LLM's own answer, used only when neither table
// has an opinion.
func forceTemporalAggregation(family models.Family, indicatorType string, llmValue models.TemporalAggregation) models.TemporalAggregation {
	forced := llmValue
	if v, ok := temporalForcingTable[indicatorType]; ok {
		forced = v
	}
	if v, ok := familyTypeForcingTable[familyType{family, indicatorType}]; ok {
		forced = v
	}
	return forced
}

var (
	currencySigil      = regexp.MustCompile(`[$€£¥]|\b(USD|EUR|GBP|JPY|CFA|XAF|XOF)\b`)
	currencyPhrase     = regexp.MustCompile(`(?i)local currency|current prices|constant prices|\bLCU\b`)
	monetaryTermInName = regexp.MustCompile(`(?i)\b(debt|reserves|exports|imports|gdp)\b`)
	priceTermInName    = regexp.MustCompile(`(?i)\b(fx rate|yield|sofr|libor|price|cost)\b`)
)

var monetaryTypes = map[string]bool{"stock": true, "flow": true, "balance": true}

// isCurrencyDenominated decides whether ind is denominated in a currency,
// independent of what the LLM answered. indicatorType is the Specialist's
// own indicator_type answer, needed because the monetary-term signal only
// applies to stock/flow/balance types. decided is false only when none of
// the heuristic's signals fire, meaning the LLM's own answer should stand.
func isCurrencyDenominated(ind models.Indicator, indicatorType string) (denominated bool, decided bool) {
	if ind.CurrencyCode != "" {
		return true, true
	}
	if currencySigil.MatchString(ind.Units) || currencyPhrase.MatchString(ind.Units) {
		return true, true
	}
	if priceTermInName.MatchString(ind.Name) {
		return true, true
	}
	if monetaryTermInName.MatchString(ind.Name) && monetaryTypes[indicatorType] {
		return true, true
	}
	return false, false
}
