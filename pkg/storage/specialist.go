package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// SpecialistRepo owns specialist_results. Only the Specialist stage
// writes here.
type SpecialistRepo struct {
	store *Store
}

// NewSpecialistRepo builds a repo bound to store's connection pool.
func NewSpecialistRepo(store *Store) *SpecialistRepo {
	return &SpecialistRepo{store: store}
}

// Put records r for indicatorID under executionID.
func (repo *SpecialistRepo) Put(ctx context.Context, executionID, indicatorID string, r models.SpecialistResult) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO specialist_results
			(execution_id, indicator_id, family, indicator_type, indicator_category,
			 temporal_aggregation, is_currency_denominated, confidence_cls, reasoning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		executionID, indicatorID, string(r.Family), r.IndicatorType, r.IndicatorCategory,
		string(r.TemporalAggregation), r.IsCurrencyDenominated, r.ConfidenceCls, r.Reasoning, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert specialist_results: %w", err)
	}
	return nil
}

// Get returns the Specialist's result for one indicator within an execution.
func (repo *SpecialistRepo) Get(ctx context.Context, executionID, indicatorID string) (models.SpecialistResult, error) {
	var r models.SpecialistResult
	var category, reasoning sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT indicator_id, family, indicator_type, indicator_category, temporal_aggregation,
		       is_currency_denominated, confidence_cls, reasoning, created_at
		FROM specialist_results WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := row.Scan(&r.IndicatorID, &r.Family, &r.IndicatorType, &category, &r.TemporalAggregation,
		&r.IsCurrencyDenominated, &r.ConfidenceCls, &reasoning, &r.CreatedAt); err != nil {
		return models.SpecialistResult{}, wrapNoRows(err)
	}
	r.IndicatorCategory = category.String
	r.Reasoning = reasoning.String
	return r, nil
}

// ListByExecution returns every Specialist result committed for executionID.
func (repo *SpecialistRepo) ListByExecution(ctx context.Context, executionID string) ([]models.SpecialistResult, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT indicator_id, family, indicator_type, indicator_category, temporal_aggregation,
		       is_currency_denominated, confidence_cls, reasoning, created_at
		FROM specialist_results WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list specialist_results: %w", err)
	}
	defer rows.Close()

	var out []models.SpecialistResult
	for rows.Next() {
		var r models.SpecialistResult
		var category, reasoning sql.NullString
		if err := rows.Scan(&r.IndicatorID, &r.Family, &r.IndicatorType, &category, &r.TemporalAggregation,
			&r.IsCurrencyDenominated, &r.ConfidenceCls, &reasoning, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan specialist_results: %w", err)
		}
		r.IndicatorCategory = category.String
		r.Reasoning = reasoning.String
		out = append(out, r)
	}
	return out, rows.Err()
}
