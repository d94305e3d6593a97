package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// RouterRepo owns router_results. Only the Router stage writes here.
type RouterRepo struct {
	store *Store
}

// NewRouterRepo builds a repo bound to store's connection pool.
func NewRouterRepo(store *Store) *RouterRepo {
	return &RouterRepo{store: store}
}

// Put records r's result for indicatorID under executionID. A second Put
// for the same (executionID, indicatorID) returns ErrAlreadyExists: the
// Router owns this row and never revises it once written.
func (repo *RouterRepo) Put(ctx context.Context, executionID, indicatorID string, r models.RouterResult) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO router_results (execution_id, indicator_id, family, confidence_family, reasoning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		executionID, indicatorID, string(r.Family), r.ConfidenceFamily, r.Reasoning, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert router_results: %w", err)
	}
	return nil
}

// Get returns the Router's result for one indicator within an execution.
func (repo *RouterRepo) Get(ctx context.Context, executionID, indicatorID string) (models.RouterResult, error) {
	var r models.RouterResult
	var reasoning sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT indicator_id, family, confidence_family, reasoning, created_at
		FROM router_results WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := row.Scan(&r.IndicatorID, &r.Family, &r.ConfidenceFamily, &reasoning, &r.CreatedAt); err != nil {
		return models.RouterResult{}, wrapNoRows(err)
	}
	r.Reasoning = reasoning.String
	return r, nil
}

// ListByExecution returns every Router result committed for executionID.
func (repo *RouterRepo) ListByExecution(ctx context.Context, executionID string) ([]models.RouterResult, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT indicator_id, family, confidence_family, reasoning, created_at
		FROM router_results WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list router_results: %w", err)
	}
	defer rows.Close()

	var out []models.RouterResult
	for rows.Next() {
		var r models.RouterResult
		var reasoning sql.NullString
		if err := rows.Scan(&r.IndicatorID, &r.Family, &r.ConfidenceFamily, &reasoning, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan router_results: %w", err)
		}
		r.Reasoning = reasoning.String
		out = append(out, r)
	}
	return out, rows.Err()
}
