package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/classify/pkg/batch"
	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/timeseries"
)

// validationConcurrency bounds the Validation stage's worker pool. Unlike
// the LLM-backed stages this is pure in-process arithmetic over
// sample_values, so it has no entry in config.ConcurrencyConfig — there is
// no external rate limit to respect, only CPU.
const validationConcurrency = 4

// ValidationDeps groups the Validation stage's collaborators.
type ValidationDeps struct {
	Cfg  *config.Config
	Repo *storage.ValidationRepo
}

// RunValidation analyzes each indicator's time series deterministically
// (no LLM call) and persists one models.ValidationResult per indicator.
// indicatorType and isCurrencyDenominated come from the Specialist stage's
// committed output.
func RunValidation(ctx context.Context, executionID string, items []models.Indicator, specialist []models.SpecialistResult, deps ValidationDeps) ([]models.ValidationResult, error) {
	bySpecialist := make(map[string]models.SpecialistResult, len(specialist))
	for _, s := range specialist {
		bySpecialist[s.IndicatorID] = s
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
		return nil, err
	}

	byID := make(map[string]models.Indicator, len(items))
	ids := make([]string, len(items))
	for i, ind := range items {
		byID[ind.ID] = ind
		ids[i] = ind.ID
	}

	pool := batch.New("validation", validationConcurrency)

	var mu sync.Mutex
	var results []models.ValidationResult

	errs := pool.Run(ctx, ids, func(ctx context.Context, id string) error {
		ind := byID[id]
		sp := bySpecialist[id]
		result := timeseries.Validate(ind.ID, sp.IndicatorType, ind.Name, ind.Scale, sp.IsCurrencyDenominated, ind.SampleValues)

		mu.Lock()
		results = append(results, result)
		mu.Unlock()
		return nil
	})
	if len(errs) > 0 {
		return results, fmt.Errorf("validation: %d of %d indicators failed irrecoverably: %w", len(errs), len(ids), errs[0].Err)
	}

	for _, r := range results {
		if err := deps.Repo.Put(ctx, executionID, r.IndicatorID, r); err != nil {
			return results, fmt.Errorf("persisting validation result %s: %w", r.IndicatorID, err)
		}
	}

	return results, nil
}
