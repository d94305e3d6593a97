package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProcessesEveryItem(t *testing.T) {
	p := New("test-stage", 4)
	ids := []string{"a", "b", "c", "d", "e"}

	var processed int32
	failures := p.Run(context.Background(), ids, func(ctx context.Context, id string) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	assert.Empty(t, failures)
	assert.EqualValues(t, 5, processed)
	assert.Equal(t, 5, p.Status().Completed)
	assert.Equal(t, 0, p.Status().Failed)
}

func TestRunReportsPerItemFailuresWithoutAbortingTheRest(t *testing.T) {
	p := New("test-stage", 2)
	ids := []string{"a", "b", "c"}

	failures := p.Run(context.Background(), ids, func(ctx context.Context, id string) error {
		if id == "b" {
			return errors.New("boom")
		}
		return nil
	})

	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].ID)
	assert.EqualError(t, failures[0].Err, "boom")
	assert.Equal(t, 2, p.Status().Completed)
	assert.Equal(t, 1, p.Status().Failed)
}

func TestRunNeverExceedsConcurrencyLimit(t *testing.T) {
	p := New("test-stage", 2)
	ids := []string{"a", "b", "c", "d", "e", "f"}

	var current, max int32
	p.Run(context.Background(), ids, func(ctx context.Context, id string) error {
		n := atomic.AddInt32(&current, 1)
		for {
			m := atomic.LoadInt32(&max)
			if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil
	})

	assert.LessOrEqual(t, int(max), 2)
}

func TestRunStopsLaunchingNewWorkOnceContextIsCancelled(t *testing.T) {
	p := New("test-stage", 1)
	ctx, cancel := context.WithCancel(context.Background())

	ids := []string{"a", "b", "c", "d"}
	var ran int32
	p.Run(ctx, ids, func(ctx context.Context, id string) error {
		n := atomic.AddInt32(&ran, 1)
		if n == 1 {
			cancel()
		}
		return nil
	})

	assert.Less(t, int(ran), len(ids))
}

func TestNewTreatsNonPositiveConcurrencyAsOne(t *testing.T) {
	p := New("test-stage", 0)
	assert.Equal(t, 1, p.concurrency)
}
