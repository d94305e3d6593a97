package llmgw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItem struct{ id string }

func TestBatchWithFallbackReturnsBatchResultOnSuccess(t *testing.T) {
	items := []fakeItem{{id: "a"}, {id: "b"}}
	results, failed := BatchWithFallback(context.Background(), items,
		func(i fakeItem) string { return i.id },
		RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(_ context.Context, items []fakeItem) (map[string]string, error) {
			return map[string]string{"a": "ok-a", "b": "ok-b"}, nil
		},
		func(_ context.Context, item fakeItem) (string, error) {
			t.Fatalf("itemFn should not be called when the batch succeeds fully")
			return "", nil
		},
	)
	assert.Empty(t, failed)
	assert.Equal(t, "ok-a", results["a"])
	assert.Equal(t, "ok-b", results["b"])
}

func TestBatchWithFallbackRetriesBatchOnceBeforeDecomposing(t *testing.T) {
	attempts := 0
	items := []fakeItem{{id: "a"}}
	results, failed := BatchWithFallback(context.Background(), items,
		func(i fakeItem) string { return i.id },
		RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(_ context.Context, items []fakeItem) (map[string]string, error) {
			attempts++
			return nil, errors.New("transient 500")
		},
		func(_ context.Context, item fakeItem) (string, error) {
			return "from-item-call", nil
		},
	)
	assert.Equal(t, 2, attempts, "batch is retried exactly once before falling back per item")
	assert.Empty(t, failed)
	assert.Equal(t, "from-item-call", results["a"])
}

func TestBatchWithFallbackDecomposesOnlyMissingItems(t *testing.T) {
	items := []fakeItem{{id: "a"}, {id: "b"}}
	var itemCalls []string
	results, failed := BatchWithFallback(context.Background(), items,
		func(i fakeItem) string { return i.id },
		RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond},
		func(_ context.Context, items []fakeItem) (map[string]string, error) {
			return map[string]string{"a": "ok-a"}, nil
		},
		func(_ context.Context, item fakeItem) (string, error) {
			itemCalls = append(itemCalls, item.id)
			return "ok-b", nil
		},
	)
	assert.Equal(t, []string{"b"}, itemCalls)
	assert.Empty(t, failed)
	assert.Equal(t, "ok-a", results["a"])
	assert.Equal(t, "ok-b", results["b"])
}

func TestBatchWithFallbackRecordsItemsThatExhaustRetries(t *testing.T) {
	items := []fakeItem{{id: "a"}}
	_, failed := BatchWithFallback(context.Background(), items,
		func(i fakeItem) string { return i.id },
		RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(_ context.Context, items []fakeItem) (map[string]string, error) {
			return nil, errors.New("down")
		},
		func(_ context.Context, item fakeItem) (string, error) {
			return "", errors.New("still down")
		},
	)
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].ID)
	assert.Equal(t, 2, failed[0].Retries)
}

func TestRetryItemStopsAtFirstSuccess(t *testing.T) {
	calls := 0
	result, retries, err := RetryItem(context.Background(), fakeItem{id: "a"}, RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(_ context.Context, item fakeItem) (string, error) {
			calls++
			if calls < 2 {
				return "", errors.New("not yet")
			}
			return "eventually", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "eventually", result)
	assert.Equal(t, 1, retries)
	assert.Equal(t, 2, calls)
}

func TestRetryItemRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := RetryItem(ctx, fakeItem{id: "a"}, RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(_ context.Context, item fakeItem) (string, error) {
			return "", errors.New("always fails")
		})
	assert.Error(t, err)
}
