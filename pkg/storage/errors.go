package storage

import "errors"

var (
	// ErrNotFound is returned when a row does not exist for the given key.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned by a Put that must not overwrite an
	// existing row (a stage writing its result row twice for the same
	// execution/indicator pair).
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrConflict is returned when a conditional update affected zero rows
	// because the row was concurrently changed.
	ErrConflict = errors.New("storage: conflict")

	// ErrStorageUnavailable wraps driver-level connectivity failures so
	// callers can distinguish "no such row" from "database unreachable".
	ErrStorageUnavailable = errors.New("storage: unavailable")
)
