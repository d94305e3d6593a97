package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// ReviewRepo owns review_decisions. Only the Review stage writes here.
type ReviewRepo struct {
	store *Store
}

// NewReviewRepo builds a repo bound to store's connection pool.
func NewReviewRepo(store *Store) *ReviewRepo {
	return &ReviewRepo{store: store}
}

// Put records d for indicatorID under executionID.
func (repo *ReviewRepo) Put(ctx context.Context, executionID, indicatorID string, d models.ReviewDecision) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO review_decisions (execution_id, indicator_id, action, target_field, old_value, new_value, reasoning, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		executionID, indicatorID, string(d.Action), d.TargetField, d.OldValue, d.NewValue, d.Reasoning, d.Confidence)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert review_decisions: %w", err)
	}
	return nil
}

// Get returns the Review decision for one indicator within an execution.
func (repo *ReviewRepo) Get(ctx context.Context, executionID, indicatorID string) (models.ReviewDecision, error) {
	var d models.ReviewDecision
	var targetField, oldValue, newValue sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT indicator_id, action, target_field, old_value, new_value, reasoning, confidence
		FROM review_decisions WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := row.Scan(&d.IndicatorID, &d.Action, &targetField, &oldValue, &newValue, &d.Reasoning, &d.Confidence); err != nil {
		return models.ReviewDecision{}, wrapNoRows(err)
	}
	d.TargetField = targetField.String
	d.OldValue = oldValue.String
	d.NewValue = newValue.String
	return d, nil
}

// ListByExecution returns every Review decision committed for executionID.
func (repo *ReviewRepo) ListByExecution(ctx context.Context, executionID string) ([]models.ReviewDecision, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT indicator_id, action, target_field, old_value, new_value, reasoning, confidence
		FROM review_decisions WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list review_decisions: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewDecision
	for rows.Next() {
		var d models.ReviewDecision
		var targetField, oldValue, newValue sql.NullString
		if err := rows.Scan(&d.IndicatorID, &d.Action, &targetField, &oldValue, &newValue, &d.Reasoning, &d.Confidence); err != nil {
			return nil, fmt.Errorf("scan review_decisions: %w", err)
		}
		d.TargetField = targetField.String
		d.OldValue = oldValue.String
		d.NewValue = newValue.String
		out = append(out, d)
	}
	return out, rows.Err()
}
