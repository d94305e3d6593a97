package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// OrientationRepo owns orientation_results. Only the Orientation stage
// writes here.
type OrientationRepo struct {
	store *Store
}

// NewOrientationRepo builds a repo bound to store's connection pool.
func NewOrientationRepo(store *Store) *OrientationRepo {
	return &OrientationRepo{store: store}
}

// Put records r for indicatorID under executionID.
func (repo *OrientationRepo) Put(ctx context.Context, executionID, indicatorID string, r models.OrientationResult) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO orientation_results (execution_id, indicator_id, heat_map_orientation, confidence_orient, reasoning)
		VALUES ($1, $2, $3, $4, $5)`,
		executionID, indicatorID, string(r.HeatMapOrientation), r.ConfidenceOrient, r.Reasoning)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert orientation_results: %w", err)
	}
	return nil
}

// Get returns the Orientation result for one indicator within an execution.
func (repo *OrientationRepo) Get(ctx context.Context, executionID, indicatorID string) (models.OrientationResult, error) {
	var r models.OrientationResult
	var reasoning sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT indicator_id, heat_map_orientation, confidence_orient, reasoning
		FROM orientation_results WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := row.Scan(&r.IndicatorID, &r.HeatMapOrientation, &r.ConfidenceOrient, &reasoning); err != nil {
		return models.OrientationResult{}, wrapNoRows(err)
	}
	r.Reasoning = reasoning.String
	return r, nil
}

// ListByExecution returns every Orientation result committed for executionID.
func (repo *OrientationRepo) ListByExecution(ctx context.Context, executionID string) ([]models.OrientationResult, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT indicator_id, heat_map_orientation, confidence_orient, reasoning
		FROM orientation_results WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list orientation_results: %w", err)
	}
	defer rows.Close()

	var out []models.OrientationResult
	for rows.Next() {
		var r models.OrientationResult
		var reasoning sql.NullString
		if err := rows.Scan(&r.IndicatorID, &r.HeatMapOrientation, &r.ConfidenceOrient, &reasoning); err != nil {
			return nil, fmt.Errorf("scan orientation_results: %w", err)
		}
		r.Reasoning = reasoning.String
		out = append(out, r)
	}
	return out, rows.Err()
}
