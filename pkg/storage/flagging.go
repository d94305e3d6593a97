package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/google/uuid"
)

// FlaggingRepo owns flagging_results. The flag set is immutable once
// produced: Review reads it but never inserts, updates, or deletes rows.
type FlaggingRepo struct {
	store *Store
}

// NewFlaggingRepo builds a repo bound to store's connection pool.
func NewFlaggingRepo(store *Store) *FlaggingRepo {
	return &FlaggingRepo{store: store}
}

// Put assigns f an ID if it doesn't already have one and inserts it under
// executionID.
func (repo *FlaggingRepo) Put(ctx context.Context, executionID string, f models.FlaggedIndicator) (models.FlaggedIndicator, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO flagging_results (id, execution_id, indicator_id, flag_type, flag_reason, current_value, expected_value, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, executionID, f.IndicatorID, f.FlagType, f.FlagReason, f.CurrentValue, f.ExpectedValue, string(f.Severity))
	if err != nil {
		if isUniqueViolation(err) {
			return models.FlaggedIndicator{}, ErrAlreadyExists
		}
		return models.FlaggedIndicator{}, fmt.Errorf("insert flagging_results: %w", err)
	}
	return f, nil
}

// ListByExecution returns every flag raised for executionID, in insertion order.
func (repo *FlaggingRepo) ListByExecution(ctx context.Context, executionID string) ([]models.FlaggedIndicator, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT id, indicator_id, flag_type, flag_reason, current_value, expected_value, severity
		FROM flagging_results WHERE execution_id = $1 ORDER BY created_at`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list flagging_results: %w", err)
	}
	defer rows.Close()

	var out []models.FlaggedIndicator
	for rows.Next() {
		var f models.FlaggedIndicator
		var expected sql.NullString
		if err := rows.Scan(&f.ID, &f.IndicatorID, &f.FlagType, &f.FlagReason, &f.CurrentValue, &expected, &f.Severity); err != nil {
			return nil, fmt.Errorf("scan flagging_results: %w", err)
		}
		if expected.Valid {
			v := expected.String
			f.ExpectedValue = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListByIndicator returns every flag raised for one indicator within an execution.
func (repo *FlaggingRepo) ListByIndicator(ctx context.Context, executionID, indicatorID string) ([]models.FlaggedIndicator, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT id, indicator_id, flag_type, flag_reason, current_value, expected_value, severity
		FROM flagging_results WHERE execution_id = $1 AND indicator_id = $2 ORDER BY created_at`, executionID, indicatorID)
	if err != nil {
		return nil, fmt.Errorf("list flagging_results by indicator: %w", err)
	}
	defer rows.Close()

	var out []models.FlaggedIndicator
	for rows.Next() {
		var f models.FlaggedIndicator
		var expected sql.NullString
		if err := rows.Scan(&f.ID, &f.IndicatorID, &f.FlagType, &f.FlagReason, &f.CurrentValue, &expected, &f.Severity); err != nil {
			return nil, fmt.Errorf("scan flagging_results: %w", err)
		}
		if expected.Valid {
			v := expected.String
			f.ExpectedValue = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
