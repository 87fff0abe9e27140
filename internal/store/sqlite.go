package store

import (
	"database/sql"
	"errors"
	"strings"
)

// Sentinel errors for catalog lookups and conflicting writers.
var (
	// ErrNotFound: no archive dataset matches the requested
	// (variable, initialization) selection.
	ErrNotFound = errors.New("no matching dataset")
	// ErrAmbiguousMatch: more than one dataset matches a selection
	// that must identify exactly one.
	ErrAmbiguousMatch = errors.New("selection matches more than one dataset")
	// ErrLocked: the destination is held by a concurrent writer.
	ErrLocked = errors.New("database locked by another writer")
)

// Store wraps the SQLite database holding the hindcast archive catalog,
// region masks, boundary datasets and inference outputs.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// isLocked reports whether err is SQLite signalling that another
// connection holds a write lock (SQLITE_BUSY / SQLITE_LOCKED).
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
