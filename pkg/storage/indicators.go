package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// IndicatorRepo reads and writes source_indicators and its time series
// companion table, source_country_indicators. Indicators are immutable
// input for the duration of a run: nothing downstream of the loader that
// populates this table writes to it again.
type IndicatorRepo struct {
	store *Store
}

// NewIndicatorRepo builds a repo bound to store's connection pool.
func NewIndicatorRepo(store *Store) *IndicatorRepo {
	return &IndicatorRepo{store: store}
}

// Put inserts ind and its sample values, replacing any existing row with
// the same ID. Used by the loader that seeds a run's input set.
func (r *IndicatorRepo) Put(ctx context.Context, ind models.Indicator) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		return r.putTx(ctx, tx, ind)
	})
}

// PutBatch inserts many indicators in one transaction.
func (r *IndicatorRepo) PutBatch(ctx context.Context, indicators []models.Indicator) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, ind := range indicators {
			if err := r.putTx(ctx, tx, ind); err != nil {
				return fmt.Errorf("indicator %s: %w", ind.ID, err)
			}
		}
		return nil
	})
}

func (r *IndicatorRepo) putTx(ctx context.Context, tx *sql.Tx, ind models.Indicator) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO source_indicators
			(id, name, units, periodicity, category_group, topic, aggregation_method, scale, currency_code, dataset, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, units = EXCLUDED.units, periodicity = EXCLUDED.periodicity,
			category_group = EXCLUDED.category_group, topic = EXCLUDED.topic,
			aggregation_method = EXCLUDED.aggregation_method, scale = EXCLUDED.scale,
			currency_code = EXCLUDED.currency_code, dataset = EXCLUDED.dataset,
			description = EXCLUDED.description`,
		ind.ID, ind.Name, ind.Units, ind.Periodicity, ind.CategoryGroup, ind.Topic,
		ind.AggregationMethod, ind.Scale, ind.CurrencyCode, ind.Dataset, ind.Description,
	)
	if err != nil {
		return fmt.Errorf("insert source_indicators: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_country_indicators WHERE indicator_id = $1`, ind.ID); err != nil {
		return fmt.Errorf("clear source_country_indicators: %w", err)
	}
	for i, sample := range ind.SampleValues {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO source_country_indicators (indicator_id, ordinal, date, value)
			VALUES ($1, $2, $3, $4)`,
			ind.ID, i, sample.Date, sample.Value,
		); err != nil {
			return fmt.Errorf("insert source_country_indicators: %w", err)
		}
	}
	return nil
}

// Get returns one indicator with its sample values, in ordinal order.
func (r *IndicatorRepo) Get(ctx context.Context, id string) (models.Indicator, error) {
	var ind models.Indicator
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, name, units, periodicity, category_group, topic, aggregation_method, scale, currency_code, dataset, description
		FROM source_indicators WHERE id = $1`, id)
	if err := scanIndicator(row, &ind); err != nil {
		return models.Indicator{}, wrapNoRows(err)
	}

	samples, err := r.samples(ctx, id)
	if err != nil {
		return models.Indicator{}, err
	}
	ind.SampleValues = samples
	return ind, nil
}

// List returns up to limit indicators ordered by ID, starting after
// afterID (empty string for the first page), without their sample values
// — callers that need the full series call Get per indicator.
func (r *IndicatorRepo) List(ctx context.Context, afterID string, limit int) ([]models.Indicator, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, name, units, periodicity, category_group, topic, aggregation_method, scale, currency_code, dataset, description
		FROM source_indicators
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list source_indicators: %w", err)
	}
	defer rows.Close()

	var out []models.Indicator
	for rows.Next() {
		var ind models.Indicator
		if err := scanIndicator(rows, &ind); err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

// ListByIDs returns the indicators matching ids, without their sample
// values (same no-series convention as List), in no particular order. A
// caller-supplied ID with no matching row is silently omitted.
func (r *IndicatorRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Indicator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, name, units, periodicity, category_group, topic, aggregation_method, scale, currency_code, dataset, description
		FROM source_indicators
		WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list source_indicators by ids: %w", err)
	}
	defer rows.Close()

	var out []models.Indicator
	for rows.Next() {
		var ind models.Indicator
		if err := scanIndicator(rows, &ind); err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func (r *IndicatorRepo) samples(ctx context.Context, indicatorID string) ([]models.Sample, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT date, value FROM source_country_indicators
		WHERE indicator_id = $1 ORDER BY ordinal`, indicatorID)
	if err != nil {
		return nil, fmt.Errorf("list source_country_indicators: %w", err)
	}
	defer rows.Close()

	var out []models.Sample
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.Date, &s.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndicator(row rowScanner, ind *models.Indicator) error {
	var units, periodicity, categoryGroup, topic, aggMethod, scale, currency, dataset, description sql.NullString
	if err := row.Scan(&ind.ID, &ind.Name, &units, &periodicity, &categoryGroup, &topic, &aggMethod, &scale, &currency, &dataset, &description); err != nil {
		return fmt.Errorf("scan source_indicators: %w", err)
	}
	ind.Units = units.String
	ind.Periodicity = periodicity.String
	ind.CategoryGroup = categoryGroup.String
	ind.Topic = topic.String
	ind.AggregationMethod = aggMethod.String
	ind.Scale = scale.String
	ind.CurrencyCode = currency.String
	ind.Dataset = dataset.String
	ind.Description = description.String
	return nil
}
