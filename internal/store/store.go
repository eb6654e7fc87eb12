package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version of every database this
// build creates. A database stamped with a later version was written by a
// newer arflow and is refused.
const schemaVersion = 1

// Store persists series, fits and diagnostics reports in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applies the connection
// pragmas and the schema. Opening an existing database is a no-op beyond
// the version check.
//
// Connections run with WAL journaling, NORMAL sync, a 5s busy timeout and
// foreign keys on. The pool is capped at one connection, since SQLite
// serialises writers anyway.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. Safe on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ErrHashMismatch reports stored content that no longer matches the hash
// recorded when it was written.
var ErrHashMismatch = errors.New("content hash mismatch")

// ErrNewerSchema reports a database written by a newer arflow.
var ErrNewerSchema = errors.New("database schema is newer than this build")

// IsNotFound reports whether err stems from a lookup that matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// applySchema checks the stamped version before touching any table, then
// creates whatever is missing and stamps the current version.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("version %d, supported %d: %w", version, schemaVersion, ErrNewerSchema)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if version < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("stamp user_version: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
