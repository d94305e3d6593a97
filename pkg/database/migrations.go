package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These enable efficient search on source_indicators.name/description,
// complementing migrate's plain column/constraint DDL.
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_source_indicators_name_gin
		ON source_indicators USING gin(to_tsvector('english', name))`)
	if err != nil {
		return fmt.Errorf("failed to create name GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_source_indicators_description_gin
		ON source_indicators USING gin(to_tsvector('english', COALESCE(description, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create description GIN index: %w", err)
	}

	return nil
}
