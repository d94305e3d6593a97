// Package batch runs one pipeline stage's indicators through a bounded pool
// of goroutines. Stages themselves are strictly sequential (Router finishes
// before Specialist starts); concurrency only happens within a stage, over
// its own indicators.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ItemError pairs a failed item's identity with the error its worker
// returned, so a stage can report which indicators it could not process
// without aborting the rest of the batch.
type ItemError struct {
	ID  string
	Err error
}

// Status is a pool's live progress, safe to read from another goroutine
// while Run is still executing (exposed to a status endpoint during a run).
type Status struct {
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	InFlight  int       `json:"in_flight"`
	StartedAt time.Time `json:"started_at"`
}

// Pool runs a bounded number of workers concurrently over one stage's
// items. Created fresh per stage invocation; not reused across stages.
type Pool struct {
	concurrency int
	stageName   string

	mu     sync.Mutex
	status Status
}

// New returns a Pool that runs at most concurrency items at once.
// concurrency <= 0 is treated as 1 (sequential, never zero workers).
func New(stageName string, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency, stageName: stageName}
}

// Status returns a snapshot of the pool's current progress.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run executes fn for every item in items, at most p.concurrency at a time,
// and returns the errors of the items that failed (in no particular order).
// Run stops launching new work once ctx is cancelled but waits for
// in-flight workers to return before coming back, so a stage never leaves
// a half-written result behind.
func (p *Pool) Run(ctx context.Context, ids []string, fn func(ctx context.Context, id string) error) []ItemError {
	p.mu.Lock()
	p.status = Status{Total: len(ids), StartedAt: time.Now()}
	p.mu.Unlock()

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []ItemError

	slog.Info("stage started", "stage", p.stageName, "items", len(ids), "concurrency", p.concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		p.adjustInFlight(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer p.adjustInFlight(-1)

			err := fn(ctx, id)

			mu.Lock()
			if err != nil {
				failures = append(failures, ItemError{ID: id, Err: err})
				p.incrementFailed()
			} else {
				p.incrementCompleted()
			}
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	slog.Info("stage finished", "stage", p.stageName,
		"completed", p.status.Completed, "failed", len(failures))
	return failures
}

func (p *Pool) adjustInFlight(delta int) {
	p.mu.Lock()
	p.status.InFlight += delta
	p.mu.Unlock()
}

func (p *Pool) incrementCompleted() {
	p.mu.Lock()
	p.status.Completed++
	p.mu.Unlock()
}

func (p *Pool) incrementFailed() {
	p.mu.Lock()
	p.status.Failed++
	p.mu.Unlock()
}
