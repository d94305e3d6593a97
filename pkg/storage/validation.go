package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// ValidationRepo owns validation_results. Only the Validation stage
// writes here; it is pure time-series arithmetic and never calls an LLM.
type ValidationRepo struct {
	store *Store
}

// NewValidationRepo builds a repo bound to store's connection pool.
func NewValidationRepo(store *Store) *ValidationRepo {
	return &ValidationRepo{store: store}
}

// Put records r for indicatorID under executionID.
func (repo *ValidationRepo) Put(ctx context.Context, executionID, indicatorID string, r models.ValidationResult) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO validation_results
			(execution_id, indicator_id, is_cumulative, cumulative_confidence, suggested_temporal,
			 validation_reasoning, analyzed, magnitude_suspicious, magnitude_reasoning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		executionID, indicatorID, r.IsCumulative, r.CumulativeConfidence, string(r.SuggestedTemporal),
		r.ValidationReasoning, r.Analyzed, r.MagnitudeSuspicious, r.MagnitudeReasoning)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert validation_results: %w", err)
	}
	return nil
}

// Get returns the Validation result for one indicator within an execution.
func (repo *ValidationRepo) Get(ctx context.Context, executionID, indicatorID string) (models.ValidationResult, error) {
	var r models.ValidationResult
	var suggested, valReasoning, magReasoning sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT indicator_id, is_cumulative, cumulative_confidence, suggested_temporal,
		       validation_reasoning, analyzed, magnitude_suspicious, magnitude_reasoning
		FROM validation_results WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := row.Scan(&r.IndicatorID, &r.IsCumulative, &r.CumulativeConfidence, &suggested,
		&valReasoning, &r.Analyzed, &r.MagnitudeSuspicious, &magReasoning); err != nil {
		return models.ValidationResult{}, wrapNoRows(err)
	}
	r.SuggestedTemporal = models.TemporalAggregation(suggested.String)
	r.ValidationReasoning = valReasoning.String
	r.MagnitudeReasoning = magReasoning.String
	return r, nil
}

// ListByExecution returns every Validation result committed for executionID.
func (repo *ValidationRepo) ListByExecution(ctx context.Context, executionID string) ([]models.ValidationResult, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT indicator_id, is_cumulative, cumulative_confidence, suggested_temporal,
		       validation_reasoning, analyzed, magnitude_suspicious, magnitude_reasoning
		FROM validation_results WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list validation_results: %w", err)
	}
	defer rows.Close()

	var out []models.ValidationResult
	for rows.Next() {
		var r models.ValidationResult
		var suggested, valReasoning, magReasoning sql.NullString
		if err := rows.Scan(&r.IndicatorID, &r.IsCumulative, &r.CumulativeConfidence, &suggested,
			&valReasoning, &r.Analyzed, &r.MagnitudeSuspicious, &magReasoning); err != nil {
			return nil, fmt.Errorf("scan validation_results: %w", err)
		}
		r.SuggestedTemporal = models.TemporalAggregation(suggested.String)
		r.ValidationReasoning = valReasoning.String
		r.MagnitudeReasoning = magReasoning.String
		out = append(out, r)
	}
	return out, rows.Err()
}
