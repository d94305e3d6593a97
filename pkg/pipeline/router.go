package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/classify/pkg/batch"
	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/tidwall/gjson"
)

const routerSystemPrompt = `You are an economic data classification assistant. Classify each indicator
into exactly one family from this closed enumeration:

- physical-fundamental: a physical or real-economy level/flow (reserves, GDP, exports, trade balance)
- numeric-measurement: a unitless count, percentage, ratio, or share
- price-value: a market price, yield, or spread denominated in a currency
- change-movement: a period-over-period rate of change or traded volume
- composite-derived: a composite index referenced to a base period
- temporal: a duration, date, or time-bucketed label
- qualitative: anything that resists the above (category labels, free text)

Respond with a JSON array. Each element must be
{"indicator_id": string, "family": string, "confidence_family": number between 0 and 1, "reasoning": string}.
Return exactly one element per indicator, carrying back its indicator_id unchanged.`

type routerCandidate struct {
	Family     models.Family
	Confidence float64
	Reasoning  string
}

// RouterDeps groups the Router stage's collaborators.
type RouterDeps struct {
	Providers  *ProviderSet
	Cfg        *config.Config
	Masking    *masking.Service
	Repo       *storage.RouterRepo
	Executions *storage.ExecutionRepo
}

// RunRouter classifies items into families, skipping any indicator_id
// already committed for executionID (resumable reruns after a crash).
func RunRouter(ctx context.Context, executionID string, items []models.Indicator, deps RouterDeps) ([]models.RouterResult, []models.FailedIndicator, error) {
	provider, pc, err := deps.Providers.ForStage(deps.Cfg, "router")
	if err != nil {
		return nil, nil, err
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

	chunks := chunk(items, deps.Cfg.Batch.RouterBatchSize)
	pool := batch.New("router", deps.Cfg.Concurrency.Router)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = strconv.Itoa(i)
	}

	var mu sync.Mutex
	var results []models.RouterResult
	var failedIndicators []models.FailedIndicator

	errs := pool.Run(ctx, ids, func(ctx context.Context, idStr string) error {
		idx, _ := strconv.Atoi(idStr)
		rs, fs, err := processRouterChunk(ctx, executionID, chunks[idx], provider, pc, deps)
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
		return results, failedIndicators, fmt.Errorf("router: %d of %d batches failed irrecoverably: %w", len(errs), len(chunks), errs[0].Err)
	}

	for _, r := range results {
		if err := deps.Repo.Put(ctx, executionID, r.IndicatorID, r); err != nil {
			return results, failedIndicators, fmt.Errorf("persisting router result %s: %w", r.IndicatorID, err)
		}
	}

	return results, failedIndicators, nil
}

func processRouterChunk(ctx context.Context, executionID string, batchItems []models.Indicator, provider llmgw.Provider, pc *config.LLMProviderConfig, deps RouterDeps) ([]models.RouterResult, []models.FailedIndicator, error) {
	threshold := deps.Cfg.Thresholds.ConfidenceFamilyMin

	var stashMu sync.Mutex
	stash := make(map[string]routerCandidate)
	remember := func(id string, cand routerCandidate) {
		stashMu.Lock()
		stash[id] = cand
		stashMu.Unlock()
	}

	idFunc := func(ind models.Indicator) string { return ind.ID }

	batchFn := func(ctx context.Context, group []models.Indicator) (map[string]routerCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, routerSystemPrompt, buildRouterUserPrompt(group, deps.Masking))
		if err != nil {
			return nil, fmt.Errorf("router batch request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("router batch response: %w", err)
		}
		byID, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return nil, fmt.Errorf("router batch pairing: %w", err)
		}

		out := make(map[string]routerCandidate)
		for id, raw := range byID {
			cand, valid := parseRouterCandidate(raw)
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

	itemFn := func(ctx context.Context, ind models.Indicator) (routerCandidate, error) {
		resp, err := chat(ctx, provider, pc, deps.Cfg, executionID, deps.Executions, routerSystemPrompt, buildRouterUserPrompt([]models.Indicator{ind}, deps.Masking))
		if err != nil {
			return routerCandidate{}, fmt.Errorf("router item request: %w", err)
		}
		extracted, err := llmgw.ExtractJSON(resp.Text)
		if err != nil {
			return routerCandidate{}, fmt.Errorf("router item response: %w", err)
		}
		byID, _, _, err := llmgw.PairByID(extracted, "indicator_id")
		if err != nil {
			return routerCandidate{}, fmt.Errorf("router item pairing: %w", err)
		}
		raw, ok := byID[ind.ID]
		if !ok {
			return routerCandidate{}, fmt.Errorf("router item response missing indicator_id %s", ind.ID)
		}
		cand, valid := parseRouterCandidate(raw)
		if !valid {
			return routerCandidate{}, fmt.Errorf("router item response failed schema validation for %s", ind.ID)
		}
		remember(ind.ID, cand)
		if cand.Confidence < threshold {
			return cand, fmt.Errorf("router item %s confidence %.2f below threshold %.2f", ind.ID, cand.Confidence, threshold)
		}
		return cand, nil
	}

	resultsMap, failed := llmgw.BatchWithFallback(ctx, batchItems, idFunc, retryConfigOf(deps.Cfg), batchFn, itemFn)

	now := time.Now()
	results := make([]models.RouterResult, 0, len(batchItems))
	for id, cand := range resultsMap {
		results = append(results, models.RouterResult{
			IndicatorID:      id,
			Family:           cand.Family,
			ConfidenceFamily: cand.Confidence,
			Reasoning:        cand.Reasoning,
			CreatedAt:        now,
		})
	}

	var failedIndicators []models.FailedIndicator
	for _, f := range failed {
		failedIndicators = append(failedIndicators, models.FailedIndicator{
			IndicatorID: f.ID, Stage: "router", Error: f.Err.Error(), Retries: f.Retries,
		})

		stashMu.Lock()
		cand, hadCandidate := stash[f.ID]
		stashMu.Unlock()

		if hadCandidate {
			results = append(results, models.RouterResult{
				IndicatorID:      f.ID,
				Family:           cand.Family,
				ConfidenceFamily: cand.Confidence,
				Reasoning:        cand.Reasoning,
				CreatedAt:        now,
			})
			continue
		}
		results = append(results, models.RouterResult{
			IndicatorID:      f.ID,
			Family:           models.FamilyQualitative,
			ConfidenceFamily: 0,
			Reasoning:        "router-failure: " + f.Err.Error(),
			CreatedAt:        now,
		})
	}

	return results, failedIndicators, nil
}

func buildRouterUserPrompt(items []models.Indicator, masker *masking.Service) string {
	masked := make([]models.Indicator, len(items))
	for i, ind := range items {
		name, _ := masker.MaskIndicator(ind.Name, "")
		masked[i] = ind
		masked[i].Name = name
	}
	var sb strings.Builder
	sb.WriteString("Classify the following indicators:\n\n")
	sb.WriteString(enumerateIndicators(masked))
	return sb.String()
}

func parseRouterCandidate(raw string) (routerCandidate, bool) {
	family := models.Family(gjson.Get(raw, "family").String())
	confidence := gjson.Get(raw, "confidence_family").Float()
	reasoning := gjson.Get(raw, "reasoning").String()

	if !family.IsValid() {
		return routerCandidate{}, false
	}
	if err := validateRange("confidence_family", confidence, 0, 1); err != nil {
		return routerCandidate{}, false
	}
	return routerCandidate{Family: family, Confidence: confidence, Reasoning: reasoning}, true
}

// skipExisting removes already-processed items (by ID) from items,
// determined by the set loadSeen returns.
func skipExisting(_ context.Context, items []models.Indicator, loadSeen func() (map[string]bool, error)) ([]models.Indicator, map[string]bool, error) {
	seen, err := loadSeen()
	if err != nil {
		return nil, nil, err
	}
	if len(seen) == 0 {
		return items, seen, nil
	}
	remaining := make([]models.Indicator, 0, len(items))
	for _, ind := range items {
		if !seen[ind.ID] {
			remaining = append(remaining, ind)
		}
	}
	return remaining, seen, nil
}
