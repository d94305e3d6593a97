// Package storage holds hand-written SQL repositories, one per table,
// against the connection pool pkg/database opens and migrates. Every
// repository exposes Put/Get/List plus whatever scan its stage needs;
// stage ownership of a table is enforced by convention (only one stage's
// repository ever calls an INSERT/UPDATE against it), not by the schema.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store is the shared handle every repository is built from.
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying pool, for callers that need raw access (health
// checks, ad hoc reporting queries).
func (s *Store) DB() *sql.DB {
	return s.db
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run unchanged inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise. A panic inside fn is re-thrown after rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), independent of which driver wraps it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState() == "23505"
	}
	return false
}

// ErrNoRows translates sql.ErrNoRows to the package's own ErrNotFound so
// callers never import database/sql just to compare errors.
func wrapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
