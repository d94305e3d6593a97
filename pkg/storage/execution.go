package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// ExecutionRepo owns pipeline_executions, the telemetry row for one
// end-to-end run. Only the driver writes here.
type ExecutionRepo struct {
	store *Store
}

// NewExecutionRepo builds a repo bound to store's connection pool.
func NewExecutionRepo(store *Store) *ExecutionRepo {
	return &ExecutionRepo{store: store}
}

// Start inserts a new execution row with StartedAt set to now.
func (repo *ExecutionRepo) Start(ctx context.Context, executionID string) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO pipeline_executions (execution_id, started_at, stage_counts)
		VALUES ($1, $2, '{}')`, executionID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert pipeline_executions: %w", err)
	}
	return nil
}

// RecordUsage accumulates one batch call's token/cost telemetry onto the
// execution row.
func (repo *ExecutionRepo) RecordUsage(ctx context.Context, executionID string, tokensIn, tokensOut int, cost float64) error {
	_, err := repo.store.db.ExecContext(ctx, `
		UPDATE pipeline_executions
		SET api_calls = api_calls + 1, tokens_in = tokens_in + $1, tokens_out = tokens_out + $2, cost_estimate = cost_estimate + $3
		WHERE execution_id = $4`,
		tokensIn, tokensOut, cost, executionID)
	if err != nil {
		return fmt.Errorf("update pipeline_executions usage: %w", err)
	}
	return nil
}

// RecordStageCount sets the processed-item count for one stage.
func (repo *ExecutionRepo) RecordStageCount(ctx context.Context, executionID, stage string, count int) error {
	return repo.store.WithTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		if err := tx.QueryRowContext(ctx, `SELECT stage_counts FROM pipeline_executions WHERE execution_id = $1 FOR UPDATE`, executionID).Scan(&raw); err != nil {
			return wrapNoRows(fmt.Errorf("select stage_counts: %w", err))
		}
		counts := map[string]int{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &counts); err != nil {
				return fmt.Errorf("unmarshal stage_counts: %w", err)
			}
		}
		counts[stage] = count
		updated, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("marshal stage_counts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pipeline_executions SET stage_counts = $1 WHERE execution_id = $2`, updated, executionID); err != nil {
			return fmt.Errorf("update stage_counts: %w", err)
		}
		return nil
	})
}

// Finish stamps FinishedAt on the execution row.
func (repo *ExecutionRepo) Finish(ctx context.Context, executionID string) error {
	res, err := repo.store.db.ExecContext(ctx, `
		UPDATE pipeline_executions SET finished_at = $1 WHERE execution_id = $2`, time.Now(), executionID)
	if err != nil {
		return fmt.Errorf("finish pipeline_executions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one execution's telemetry.
func (repo *ExecutionRepo) Get(ctx context.Context, executionID string) (models.PipelineExecution, error) {
	var e models.PipelineExecution
	var raw []byte
	var finishedAt sql.NullTime
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT execution_id, started_at, finished_at, stage_counts, api_calls, tokens_in, tokens_out, cost_estimate
		FROM pipeline_executions WHERE execution_id = $1`, executionID)
	if err := row.Scan(&e.ExecutionID, &e.StartedAt, &finishedAt, &raw, &e.APICalls, &e.TokensIn, &e.TokensOut, &e.CostEstimate); err != nil {
		return models.PipelineExecution{}, wrapNoRows(err)
	}
	if finishedAt.Valid {
		e.FinishedAt = &finishedAt.Time
	}
	e.StageCounts = map[string]int{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.StageCounts); err != nil {
			return models.PipelineExecution{}, fmt.Errorf("unmarshal stage_counts: %w", err)
		}
	}
	return e, nil
}
