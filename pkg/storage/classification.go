package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// ClassificationRepo owns classifications, the final one-row-per-indicator
// merge of committed stage outputs. Only the driver writes here.
type ClassificationRepo struct {
	store *Store
}

// NewClassificationRepo builds a repo bound to store's connection pool.
func NewClassificationRepo(store *Store) *ClassificationRepo {
	return &ClassificationRepo{store: store}
}

// Put inserts or replaces c for (executionID, indicatorID) — rerunning a
// pipeline against the same execution_id is a supported replace mode.
func (repo *ClassificationRepo) Put(ctx context.Context, c models.Classification) error {
	_, err := repo.store.db.ExecContext(ctx, `
		INSERT INTO classifications
			(execution_id, indicator_id, family, indicator_type, indicator_category, temporal_aggregation,
			 is_currency_denominated, heat_map_orientation, confidence_family, confidence_cls, confidence_orient,
			 excluded, exclusion_reason, reviewed_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (execution_id, indicator_id) DO UPDATE SET
			family = EXCLUDED.family, indicator_type = EXCLUDED.indicator_type,
			indicator_category = EXCLUDED.indicator_category, temporal_aggregation = EXCLUDED.temporal_aggregation,
			is_currency_denominated = EXCLUDED.is_currency_denominated, heat_map_orientation = EXCLUDED.heat_map_orientation,
			confidence_family = EXCLUDED.confidence_family, confidence_cls = EXCLUDED.confidence_cls,
			confidence_orient = EXCLUDED.confidence_orient, excluded = EXCLUDED.excluded,
			exclusion_reason = EXCLUDED.exclusion_reason, reviewed_action = EXCLUDED.reviewed_action`,
		c.ExecutionID, c.IndicatorID, string(c.Family), c.IndicatorType, c.IndicatorCategory, string(c.TemporalAggregation),
		c.IsCurrencyDenominated, string(c.HeatMapOrientation), c.ConfidenceFamily, c.ConfidenceCls, c.ConfidenceOrient,
		c.Excluded, c.ExclusionReason, string(c.ReviewedAction), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert classifications: %w", err)
	}
	return nil
}

// ApplyFix overwrites one field of an existing classification in response
// to a Review "fix" action, and records that the row was reviewed.
func (repo *ClassificationRepo) ApplyFix(ctx context.Context, executionID, indicatorID, field, newValue string) error {
	column, ok := fixableColumns[field]
	if !ok {
		return fmt.Errorf("field %q is not fixable on classifications", field)
	}
	res, err := repo.store.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE classifications SET %s = $1, reviewed_action = 'fix' WHERE execution_id = $2 AND indicator_id = $3`, column),
		newValue, executionID, indicatorID)
	if err != nil {
		return fmt.Errorf("apply fix to classifications.%s: %w", column, err)
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

// fixableColumns whitelists the classification fields Review is allowed to
// overwrite, so ApplyFix never interpolates caller-controlled SQL.
var fixableColumns = map[string]string{
	"family":                  "family",
	"indicator_type":          "indicator_type",
	"indicator_category":      "indicator_category",
	"temporal_aggregation":    "temporal_aggregation",
	"heat_map_orientation":    "heat_map_orientation",
	"is_currency_denominated": "is_currency_denominated",
}

// SetExcluded marks (or clears) whether a classification is excluded from
// the final output, per §7's "persistent data errors exclude the indicator
// unless Review fixes it" rule.
func (repo *ClassificationRepo) SetExcluded(ctx context.Context, executionID, indicatorID string, excluded bool, reason string) error {
	_, err := repo.store.db.ExecContext(ctx,
		`UPDATE classifications SET excluded = $1, exclusion_reason = $2 WHERE execution_id = $3 AND indicator_id = $4`,
		excluded, reason, executionID, indicatorID)
	if err != nil {
		return fmt.Errorf("set classifications.excluded: %w", err)
	}
	return nil
}

// Get returns the classification for one indicator within an execution.
func (repo *ClassificationRepo) Get(ctx context.Context, executionID, indicatorID string) (models.Classification, error) {
	var c models.Classification
	var category, exclusionReason, reviewedAction sql.NullString
	row := repo.store.db.QueryRowContext(ctx, `
		SELECT execution_id, indicator_id, family, indicator_type, indicator_category, temporal_aggregation,
		       is_currency_denominated, heat_map_orientation, confidence_family, confidence_cls, confidence_orient,
		       excluded, exclusion_reason, reviewed_action, created_at
		FROM classifications WHERE execution_id = $1 AND indicator_id = $2`, executionID, indicatorID)
	if err := scanClassification(row, &c, &category, &exclusionReason, &reviewedAction); err != nil {
		return models.Classification{}, wrapNoRows(err)
	}
	c.IndicatorCategory = category.String
	c.ExclusionReason = exclusionReason.String
	c.ReviewedAction = models.ReviewAction(reviewedAction.String)
	return c, nil
}

// ListByExecution returns every classification committed for executionID.
func (repo *ClassificationRepo) ListByExecution(ctx context.Context, executionID string) ([]models.Classification, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT execution_id, indicator_id, family, indicator_type, indicator_category, temporal_aggregation,
		       is_currency_denominated, heat_map_orientation, confidence_family, confidence_cls, confidence_orient,
		       excluded, exclusion_reason, reviewed_action, created_at
		FROM classifications WHERE execution_id = $1 ORDER BY indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	var out []models.Classification
	for rows.Next() {
		var c models.Classification
		var category, exclusionReason, reviewedAction sql.NullString
		if err := scanClassification(rows, &c, &category, &exclusionReason, &reviewedAction); err != nil {
			return nil, err
		}
		c.IndicatorCategory = category.String
		c.ExclusionReason = exclusionReason.String
		c.ReviewedAction = models.ReviewAction(reviewedAction.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListFlaggedForReview returns every classification under executionID that
// has at least one row in flagging_results, for the review-all CLI path.
func (repo *ClassificationRepo) ListFlaggedForReview(ctx context.Context, executionID string) ([]models.Classification, error) {
	rows, err := repo.store.db.QueryContext(ctx, `
		SELECT c.execution_id, c.indicator_id, c.family, c.indicator_type, c.indicator_category, c.temporal_aggregation,
		       c.is_currency_denominated, c.heat_map_orientation, c.confidence_family, c.confidence_cls, c.confidence_orient,
		       c.excluded, c.exclusion_reason, c.reviewed_action, c.created_at
		FROM classifications c
		WHERE c.execution_id = $1
		  AND EXISTS (SELECT 1 FROM flagging_results f WHERE f.execution_id = c.execution_id AND f.indicator_id = c.indicator_id)
		ORDER BY c.indicator_id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list flagged classifications: %w", err)
	}
	defer rows.Close()

	var out []models.Classification
	for rows.Next() {
		var c models.Classification
		var category, exclusionReason, reviewedAction sql.NullString
		if err := scanClassification(rows, &c, &category, &exclusionReason, &reviewedAction); err != nil {
			return nil, err
		}
		c.IndicatorCategory = category.String
		c.ExclusionReason = exclusionReason.String
		c.ReviewedAction = models.ReviewAction(reviewedAction.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClassification(row rowScanner, c *models.Classification, category, exclusionReason, reviewedAction *sql.NullString) error {
	if err := row.Scan(&c.ExecutionID, &c.IndicatorID, &c.Family, &c.IndicatorType, category, &c.TemporalAggregation,
		&c.IsCurrencyDenominated, &c.HeatMapOrientation, &c.ConfidenceFamily, &c.ConfidenceCls, &c.ConfidenceOrient,
		&c.Excluded, exclusionReason, reviewedAction, &c.CreatedAt); err != nil {
		return fmt.Errorf("scan classifications: %w", err)
	}
	return nil
}
