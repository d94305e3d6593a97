package llmgw

import (
	"context"
	"time"
)

// RetryConfig bounds the per-item retry loop: up to MaxRetries attempts,
// waiting BaseDelay after the first failure and doubling after each
// subsequent one.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// FailedItem is one item that exhausted its retry budget, carrying enough
// detail for the stage to record it and move on rather than fail the run.
type FailedItem struct {
	ID      string
	Err     error
	Retries int
}

// BatchWithFallback runs batchFn once over all of items. If it errors, it
// is retried a single additional time (the batch-level retry in §4.7). If
// the second attempt also errors, the batch is decomposed into per-item
// calls to itemFn, each governed by cfg's retry budget. Items that still
// fail after all retries are returned in the failed slice instead of the
// result map.
func BatchWithFallback[T any, R any](
	ctx context.Context,
	items []T,
	idFunc func(T) string,
	cfg RetryConfig,
	batchFn func(ctx context.Context, items []T) (map[string]R, error),
	itemFn func(ctx context.Context, item T) (R, error),
) (map[string]R, []FailedItem) {
	results, err := batchFn(ctx, items)
	if err != nil {
		results, err = batchFn(ctx, items)
	}
	if err == nil {
		missing := make([]T, 0)
		for _, item := range items {
			if _, ok := results[idFunc(item)]; !ok {
				missing = append(missing, item)
			}
		}
		if len(missing) == 0 {
			return results, nil
		}
		items = missing
	} else {
		results = make(map[string]R)
	}

	var failed []FailedItem
	for _, item := range items {
		r, retries, itemErr := retryItem(ctx, item, cfg, itemFn)
		if itemErr != nil {
			failed = append(failed, FailedItem{ID: idFunc(item), Err: itemErr, Retries: retries})
			continue
		}
		results[idFunc(item)] = r
	}
	return results, failed
}

// RetryItem exposes the per-item retry loop BatchWithFallback uses
// internally, so it can be exercised directly in isolation from a full
// batch/fallback run.
func RetryItem[T any, R any](ctx context.Context, item T, cfg RetryConfig, itemFn func(ctx context.Context, item T) (R, error)) (R, int, error) {
	return retryItem(ctx, item, cfg, itemFn)
}

func retryItem[T any, R any](ctx context.Context, item T, cfg RetryConfig, itemFn func(ctx context.Context, item T) (R, error)) (R, int, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var zero R
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, attempt, ctx.Err()
			}
			delay *= 2
		}
		r, err := itemFn(ctx, item)
		if err == nil {
			return r, attempt, nil
		}
		lastErr = err
	}
	return zero, maxRetries, lastErr
}
