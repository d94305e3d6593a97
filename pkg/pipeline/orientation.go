package pipeline

import (
	"context"
	"fmt"
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

const orientationSystemPrompt = `You are an economic data classification assistant. Decide whether a higher
value, a lower value, or neither is "good" on a heat-map for each indicator:

- higher-is-positive: growth, reserves, exports, most real-economy levels
- lower-is-positive: unemployment, inflation, debt burdens
- neutral: FX rates, yields, anything without an inherent direction

Respond with a JSON array. Each element must be
{"indicator_id": string, "heat_map_orientation": string, "confidence_orient": number between 0 and 1, "reasoning": string}.
Return exactly one element per indicator, carrying back its indicator_id unchanged.`

// orientationInput is the per-indicator projection Orientation classifies:
// the indicator itself plus the indicator_type the Specialist stage assigned.
type orientationInput struct {
	models.Indicator
	IndicatorType string
}

type orientationCandidate struct {
	Orientation models.Orientation
	Confidence  float64
	Reasoning   string
}

// OrientationDeps groups the Orientation stage's collaborators.
type OrientationDeps struct {
	Providers  *ProviderSet
	Cfg        *config.Config
	Masking    *masking.Service
	Repo       *storage.OrientationRepo
	Executions *storage.ExecutionRepo
}

// RunOrientation assigns a heat-map orientation to every item, classified
// via LLM and then overridden by the fixed taxonomy table (§4.5), which
// always wins over the model's answer.
func RunOrientation(ctx context.Context, executionID string, items []models.Indicator, specialist []models.SpecialistResult, deps OrientationDeps) ([]models.OrientationResult, []models.FailedIndicator, error) {
	provider, pc, err := deps.Providers.ForStage(deps.Cfg, "orientation")
	if err != nil {
		return nil, nil, err
	}

	typeByID := make(map[string]string, len(specialist))
	for _, s := range specialist {
		typeByID[s.IndicatorID] = s.IndicatorType
	}

	items, _, err = skipExisting(ctx, items, func() (map[string]bool, error) {
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

	inputs := make([]orientationInput, len(items))
	for i, ind := range items {
		inputs[i] = orientationInput{Indicator: ind, IndicatorType: typeByID[ind.ID]}
	}

	chunks := chunk(inputs, deps.Cfg.Batch.OrientationBatchSize)
	pool := batch.New("orientation", deps.Cfg.Concurrency.Orientation)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = strconv.Itoa(i)
	}

	var mu sync.Mutex
	var results []models.OrientationResult
	var failedIndicators []models.FailedIndicator

	errs := pool.Run(ctx, ids, func(ctx context.Context, idStr string) error {
		idx, _ := strconv.Atoi(idStr)
		rs, fs, err := processOrientationChunk(ctx, executionID, chunks[idx], provider, pc, deps)
		if err != nil {
			return err
		}
		mu.Lock()
		results = append(results, rs...)
		failedIndicators = append(failedIndicators, fs...)
		mu.Unlock()
		return nil
	})
	if len(errs) > 0 {
		return results, failedIndicators, fmt.Errorf("orientation: %d of %d batches failed irrecoverably: %w", len(errs), len(chunks), errs[0].Err)
	}

	for _, r := range results {
		if err := deps.Repo.Put(ctx, executionID, r.IndicatorID, r); err != nil {
			return results, failedIndicators, fmt.Errorf("persisting orientation result %s: %w", r.IndicatorID, err)
		}
	}

	return results, failedIndicators, nil
}

func processOrientationChunk(ctx context.Context, executionID string, items []orientationInput, provider llmgw.Provider, pc *config.LLMProviderConfig, deps OrientationDeps) ([]models.OrientationResult, []models.FailedIndicator, error) {
	threshold := deps.Cfg.Thresholds.ConfidenceOrientMin

	var stashMu sync.Mutex
	stash := make(map[string]orientationCandidate)
	remember := func(id string, cand orientationCandidate) {
		stashMu.Lock()
		stash[id] = cand
		stashMu.Unlock()
	}

	idFunc := func(in orientationInput) string { return in.ID }

	batchFn := func(ctx context.Context, group []orientationInput) (map[string]orientationCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, orientationSystemPrompt, buildOrientationUserPrompt(group, deps.Masking))
		if err != nil {
			return nil, fmt.Errorf("orientation batch request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("orientation batch response: %w", err)
		}
		byID, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return nil, fmt.Errorf("orientation batch pairing: %w", err)
		}

		out := make(map[string]orientationCandidate)
		for id, raw := range byID {
			cand, valid := parseOrientationCandidate(raw)
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

	itemFn := func(ctx context.Context, in orientationInput) (orientationCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, orientationSystemPrompt, buildOrientationUserPrompt([]orientationInput{in}, deps.Masking))
		if err != nil {
			return orientationCandidate{}, fmt.Errorf("orientation item request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return orientationCandidate{}, fmt.Errorf("orientation item response: %w", err)
		}
		byID, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return orientationCandidate{}, fmt.Errorf("orientation item pairing: %w", err)
		}
		raw, ok := byID[in.ID]
		if !ok {
			return orientationCandidate{}, fmt.Errorf("orientation item response missing indicator_id %s", in.ID)
		}
		cand, valid := parseOrientationCandidate(raw)
		if !valid {
			return orientationCandidate{}, fmt.Errorf("orientation item response failed schema validation for %s", in.ID)
		}
		remember(in.ID, cand)
		if cand.Confidence < threshold {
			return cand, fmt.Errorf("orientation item %s confidence %.2f below threshold %.2f", in.ID, cand.Confidence, threshold)
		}
		return cand, nil
	}

	resultsMap, failed := llmgw.BatchWithFallback(ctx, items, idFunc, retryConfigOf(deps.Cfg), batchFn, itemFn)

	results := make([]models.OrientationResult, 0, len(items))
	byID := make(map[string]orientationInput, len(items))
	for _, in := range items {
		byID[in.ID] = in
	}

	for id, cand := range resultsMap {
		results = append(results, applyOrientationOverride(byID[id], cand))
	}

	var failedIndicators []models.FailedIndicator
	for _, f := range failed {
		failedIndicators = append(failedIndicators, models.FailedIndicator{
			IndicatorID: f.ID, Stage: "orientation", Error: f.Err.Error(), Retries: f.Retries,
		})

		stashMu.Lock()
		cand, hadCandidate := stash[f.ID]
		stashMu.Unlock()

		if hadCandidate {
			results = append(results, applyOrientationOverride(byID[f.ID], cand))
			continue
		}
		results = append(results, applyOrientationOverride(byID[f.ID], orientationCandidate{
			Orientation: models.OrientationNeutral,
			Confidence:  0,
			Reasoning:   "orientation-failure: " + f.Err.Error(),
		}))
	}

	return results, failedIndicators, nil
}

// applyOrientationOverride lets the fixed taxonomy override table (§4.5)
// replace the LLM's answer when the indicator's name/type matches one of
// its rules, regardless of confidence.
func applyOrientationOverride(in orientationInput, cand orientationCandidate) models.OrientationResult {
	orientation := cand.Orientation
	reasoning := cand.Reasoning
	if forced, matched := taxonomy.MatchOrientationOverride(in.Name, in.IndicatorType); matched {
		orientation = forced
		reasoning = "taxonomy override: " + reasoning
	}
	return models.OrientationResult{
		IndicatorID:        in.ID,
		HeatMapOrientation: orientation,
		ConfidenceOrient:   cand.Confidence,
		Reasoning:          reasoning,
	}
}

func buildOrientationUserPrompt(items []orientationInput, masker *masking.Service) string {
	var sb strings.Builder
	sb.WriteString("Assign a heat-map orientation to each indicator:\n\n")
	for i, in := range items {
		name, _ := masker.MaskIndicator(in.Name, "")
		sb.WriteString(fmt.Sprintf("#%d [id=%s] %s (type=%s)\n", i+1, in.ID, name, in.IndicatorType))
	}
	return sb.String()
}

func parseOrientationCandidate(raw string) (orientationCandidate, bool) {
	orientation := models.Orientation(gjson.Get(raw, "heat_map_orientation").String())
	confidence := gjson.Get(raw, "confidence_orient").Float()
	reasoning := gjson.Get(raw, "reasoning").String()

	if !orientation.IsValid() {
		return orientationCandidate{}, false
	}
	if err := validateRange("confidence_orient", confidence, 0, 1); err != nil {
		return orientationCandidate{}, false
	}
	return orientationCandidate{Orientation: orientation, Confidence: confidence, Reasoning: reasoning}, true
}
