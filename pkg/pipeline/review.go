package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/codeready-toolchain/classify/pkg/batch"
	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
	"github.com/tidwall/gjson"
)

const reviewSystemPrompt = `You are the second-pass reviewer for an economic indicator classification
pipeline. You are given a candidate classification row, the reasons it was
flagged, and independent time-series evidence. Decide one action:

- accept: keep the candidate unchanged.
- fix: overwrite exactly one named field with a new value that is still a
  valid member of its enumeration.
- escalate: leave the candidate unchanged but mark it for human review.

Respond with a JSON array. Each element must be
{"indicator_id": string, "action": "accept"|"fix"|"escalate", "target_field": string,
"new_value": string, "reasoning": string, "confidence": number between 0 and 1}.
target_field and new_value are required only when action is "fix"; otherwise send
empty strings. Return exactly one element per indicator, carrying back its
indicator_id unchanged.`

type reviewCandidate struct {
	Action       models.ReviewAction
	TargetField  string
	NewValue     string
	Reasoning    string
	Confidence   float64
}

// ReviewItem is one indicator under review: its merged candidate row, the
// flags that put it there, and the Validation evidence (if any).
type ReviewItem struct {
	Candidate  FlagCandidate
	Flags      []models.FlaggedIndicator
	Validation *models.ValidationResult
}

// ReviewDeps groups the Review stage's collaborators.
type ReviewDeps struct {
	Providers      *ProviderSet
	Cfg            *config.Config
	Masking        *masking.Service
	Repo           *storage.ReviewRepo
	Classification *storage.ClassificationRepo
	Executions     *storage.ExecutionRepo
}

// BuildReviewItems selects every candidate with at least one flag of
// severity warn or block and pairs it with its flags and Validation
// evidence. Info-only flags never reach Review.
func BuildReviewItems(candidates []FlagCandidate, flags []models.FlaggedIndicator, validationByID map[string]models.ValidationResult) []ReviewItem {
	flagsByID := make(map[string][]models.FlaggedIndicator)
	for _, f := range flags {
		if f.Severity == models.SeverityInfo {
			continue
		}
		flagsByID[f.IndicatorID] = append(flagsByID[f.IndicatorID], f)
	}

	var items []ReviewItem
	for _, c := range candidates {
		fs, ok := flagsByID[c.IndicatorID]
		if !ok || len(fs) == 0 {
			continue
		}
		var v *models.ValidationResult
		if val, ok := validationByID[c.IndicatorID]; ok {
			v = &val
		}
		items = append(items, ReviewItem{Candidate: c, Flags: fs, Validation: v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Candidate.IndicatorID < items[j].Candidate.IndicatorID })
	return items
}

// RunReview sends every flagged candidate through the Review LLM call,
// applies accepted "fix" actions to the classifications table, and
// persists one ReviewDecision per indicator. reviewAllFlag forces every
// decision to "escalate" regardless of what the model recommends (the
// review-all-flag audit mode, §4.6).
func RunReview(ctx context.Context, executionID string, items []ReviewItem, deps ReviewDeps) ([]models.ReviewDecision, []models.FailedIndicator, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	provider, pc, err := deps.Providers.ForStage(deps.Cfg, "review")
	if err != nil {
		return nil, nil, err
	}

	existing, err := deps.Repo.ListByExecution(ctx, executionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading existing review decisions: %w", err)
	}
	reviewed := make(map[string]bool, len(existing))
	for _, d := range existing {
		reviewed[d.IndicatorID] = true
	}
	remaining := items[:0:0]
	for _, it := range items {
		if !reviewed[it.Candidate.IndicatorID] {
			remaining = append(remaining, it)
		}
	}
	items = remaining
	if len(items) == 0 {
		return nil, nil, nil
	}

	chunks := chunk(items, deps.Cfg.Batch.ReviewBatchSize)
	pool := batch.New("review", deps.Cfg.Concurrency.Review)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = strconv.Itoa(i)
	}

	var mu sync.Mutex
	var decisions []models.ReviewDecision
	var failedIndicators []models.FailedIndicator

	errs := pool.Run(ctx, ids, func(ctx context.Context, idStr string) error {
		idx, _ := strconv.Atoi(idStr)
		ds, fs, err := processReviewChunk(ctx, executionID, chunks[idx], provider, pc, deps)
		if err != nil {
			return err
		}
		mu.Lock()
		decisions = append(decisions, ds...)
		failedIndicators = append(failedIndicators, fs...)
		mu.Unlock()
		return nil
	})
	if len(errs) > 0 {
		return decisions, failedIndicators, fmt.Errorf("review: %d of %d batches failed irrecoverably: %w", len(errs), len(chunks), errs[0].Err)
	}

	for _, d := range decisions {
		if d.Action == models.ReviewFix {
			if err := deps.Classification.ApplyFix(ctx, executionID, d.IndicatorID, d.TargetField, d.NewValue); err != nil {
				return decisions, failedIndicators, fmt.Errorf("applying review fix for %s: %w", d.IndicatorID, err)
			}
		}
		if err := deps.Repo.Put(ctx, executionID, d.IndicatorID, d); err != nil {
			return decisions, failedIndicators, fmt.Errorf("persisting review decision %s: %w", d.IndicatorID, err)
		}
	}

	return decisions, failedIndicators, nil
}

func processReviewChunk(ctx context.Context, executionID string, items []ReviewItem, provider llmgw.Provider, pc *config.LLMProviderConfig, deps ReviewDeps) ([]models.ReviewDecision, []models.FailedIndicator, error) {
	confidenceMin := deps.Cfg.Thresholds.ReviewConfidenceMin

	var stashMu sync.Mutex
	stash := make(map[string]reviewCandidate)
	remember := func(id string, cand reviewCandidate) {
		stashMu.Lock()
		stash[id] = cand
		stashMu.Unlock()
	}

	byID := make(map[string]ReviewItem, len(items))
	for _, it := range items {
		byID[it.Candidate.IndicatorID] = it
	}

	idFunc := func(it ReviewItem) string { return it.Candidate.IndicatorID }

	batchFn := func(ctx context.Context, group []ReviewItem) (map[string]reviewCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, reviewSystemPrompt, buildReviewUserPrompt(group, deps.Masking))
		if err != nil {
			return nil, fmt.Errorf("review batch request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("review batch response: %w", err)
		}
		paired, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return nil, fmt.Errorf("review batch pairing: %w", err)
		}

		out := make(map[string]reviewCandidate)
		for id, raw := range paired {
			cand, valid := parseReviewCandidate(raw)
			if !valid {
				continue
			}
			remember(id, cand)
			out[id] = cand
		}
		return out, nil
	}

	itemFn := func(ctx context.Context, it ReviewItem) (reviewCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, reviewSystemPrompt, buildReviewUserPrompt([]ReviewItem{it}, deps.Masking))
		if err != nil {
			return reviewCandidate{}, fmt.Errorf("review item request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return reviewCandidate{}, fmt.Errorf("review item response: %w", err)
		}
		paired, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return reviewCandidate{}, fmt.Errorf("review item pairing: %w", err)
		}
		raw, ok := paired[it.Candidate.IndicatorID]
		if !ok {
			return reviewCandidate{}, fmt.Errorf("review item response missing indicator_id %s", it.Candidate.IndicatorID)
		}
		cand, valid := parseReviewCandidate(raw)
		if !valid {
			return reviewCandidate{}, fmt.Errorf("review item response failed schema validation for %s", it.Candidate.IndicatorID)
		}
		remember(it.Candidate.IndicatorID, cand)
		return cand, nil
	}

	resultsMap, failed := llmgw.BatchWithFallback(ctx, items, idFunc, retryConfigOf(deps.Cfg), batchFn, itemFn)

	decisions := make([]models.ReviewDecision, 0, len(items))
	for id, cand := range resultsMap {
		decisions = append(decisions, finalizeReviewDecision(byID[id], cand, confidenceMin, deps.Cfg.ReviewAllFlag))
	}

	var failedIndicators []models.FailedIndicator
	for _, f := range failed {
		failedIndicators = append(failedIndicators, models.FailedIndicator{
			IndicatorID: f.ID, Stage: "review", Error: f.Err.Error(), Retries: f.Retries,
		})

		stashMu.Lock()
		cand, hadCandidate := stash[f.ID]
		stashMu.Unlock()

		if hadCandidate {
			decisions = append(decisions, finalizeReviewDecision(byID[f.ID], cand, confidenceMin, deps.Cfg.ReviewAllFlag))
			continue
		}
		decisions = append(decisions, models.ReviewDecision{
			IndicatorID: f.ID,
			Action:      models.ReviewEscalate,
			Reasoning:   "review-failure: " + f.Err.Error(),
			Confidence:  0,
		})
	}

	return decisions, failedIndicators, nil
}

// finalizeReviewDecision applies the confidence floor, the review-all-flag
// audit override, and the "fix must preserve schema" invariant (§8
// property 7): a fix whose new_value fails its field's enumeration is
// downgraded to escalate rather than committed.
func finalizeReviewDecision(it ReviewItem, cand reviewCandidate, confidenceMin float64, reviewAllFlag bool) models.ReviewDecision {
	action := cand.Action
	targetField := cand.TargetField
	newValue := cand.NewValue

	if cand.Confidence < confidenceMin {
		action = models.ReviewEscalate
		targetField, newValue = "", ""
	}

	if reviewAllFlag {
		action = models.ReviewEscalate
		targetField, newValue = "", ""
	}

	if action == models.ReviewFix {
		if !validFixValue(it.Candidate.Family, targetField, newValue) {
			action = models.ReviewEscalate
			targetField, newValue = "", ""
		}
	}

	return models.ReviewDecision{
		IndicatorID: it.Candidate.IndicatorID,
		Action:      action,
		TargetField: targetField,
		OldValue:    oldValueOf(it.Candidate, targetField),
		NewValue:    newValue,
		Reasoning:   cand.Reasoning,
		Confidence:  cand.Confidence,
	}
}

// validFixValue reports whether newValue is a legal value for field,
// keeping the committed classification schema-consistent even when the
// LLM's suggested fix is malformed.
func validFixValue(family models.Family, field, newValue string) bool {
	switch field {
	case "family":
		return models.Family(newValue).IsValid()
	case "indicator_type":
		return taxonomy.Builtin().ValidType(family, newValue)
	case "temporal_aggregation":
		return models.TemporalAggregation(newValue).IsValid()
	case "heat_map_orientation":
		return models.Orientation(newValue).IsValid()
	case "is_currency_denominated":
		return newValue == "true" || newValue == "false"
	case "indicator_category":
		return newValue != ""
	default:
		return false
	}
}

func oldValueOf(c FlagCandidate, field string) string {
	switch field {
	case "family":
		return string(c.Family)
	case "indicator_type":
		return c.IndicatorType
	case "indicator_category":
		return c.IndicatorCategory
	case "temporal_aggregation":
		return string(c.TemporalAggregation)
	case "heat_map_orientation":
		return string(c.HeatMapOrientation)
	case "is_currency_denominated":
		return strconv.FormatBool(c.IsCurrencyDenominated)
	default:
		return ""
	}
}

func buildReviewUserPrompt(items []ReviewItem, masker *masking.Service) string {
	var sb strings.Builder
	sb.WriteString("Review the following flagged candidates:\n\n")
	for i, it := range items {
		name, _ := masker.MaskIndicator(it.Candidate.IndicatorName, "")
		c := it.Candidate.Classification
		sb.WriteString(fmt.Sprintf("#%d [id=%s] %s\n", i+1, c.IndicatorID, name))
		sb.WriteString(fmt.Sprintf("  candidate: family=%s indicator_type=%s temporal_aggregation=%s is_currency_denominated=%t heat_map_orientation=%s\n",
			c.Family, c.IndicatorType, c.TemporalAggregation, c.IsCurrencyDenominated, c.HeatMapOrientation))
		for _, f := range it.Flags {
			sb.WriteString(fmt.Sprintf("  flag[%s/%s]: %s\n", f.FlagType, f.Severity, f.FlagReason))
		}
		if it.Validation != nil {
			sb.WriteString(fmt.Sprintf("  validation: is_cumulative=%t (confidence %.2f) suggested_temporal=%s magnitude_suspicious=%t %s\n",
				it.Validation.IsCumulative, it.Validation.CumulativeConfidence, it.Validation.SuggestedTemporal,
				it.Validation.MagnitudeSuspicious, it.Validation.MagnitudeReasoning))
		}
	}
	return sb.String()
}

func parseReviewCandidate(raw string) (reviewCandidate, bool) {
	action := models.ReviewAction(gjson.Get(raw, "action").String())
	targetField := gjson.Get(raw, "target_field").String()
	newValue := gjson.Get(raw, "new_value").String()
	reasoning := gjson.Get(raw, "reasoning").String()
	confidence := gjson.Get(raw, "confidence").Float()

	switch action {
	case models.ReviewAccept, models.ReviewFix, models.ReviewEscalate:
	default:
		return reviewCandidate{}, false
	}
	if err := validateRange("confidence", confidence, 0, 1); err != nil {
		return reviewCandidate{}, false
	}
	return reviewCandidate{
		Action:      action,
		TargetField: targetField,
		NewValue:    newValue,
		Reasoning:   reasoning,
		Confidence:  confidence,
	}, true
}
