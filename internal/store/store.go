// Package store provides the SQLite-backed relational store for docroute:
// responsibility profiles, the assignment ledger, and ingested parent/child
// document nodes. Vectors themselves live in the similarity index; this
// package holds everything that must survive and be queryable relationally.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the shared SQLite database handle with typed accessors for each
// table group. Safe for concurrent use.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the docroute database.
// It resolves to ~/.docroute/docroute.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docroute")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "docroute.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	// Child node cascade deletion depends on foreign key enforcement.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS roles (
    id               TEXT    PRIMARY KEY,
    name             TEXT    NOT NULL,
    department       TEXT,
    business_id      TEXT,
    responsibilities TEXT    NOT NULL,
    priority         INTEGER NOT NULL DEFAULT 1,
    active           INTEGER NOT NULL DEFAULT 1,
    created_at       INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at       INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_name_scope
    ON roles (name, COALESCE(business_id, ''));

CREATE TABLE IF NOT EXISTS assignments (
    id            TEXT    PRIMARY KEY,
    role_id       TEXT    NOT NULL REFERENCES roles(id),
    document_id   TEXT    NOT NULL,
    document_name TEXT    NOT NULL,
    summary       TEXT    NOT NULL,
    confidence    REAL    NOT NULL,
    band          TEXT    NOT NULL CHECK(band IN ('high','medium','low')),
    fallback_used INTEGER NOT NULL DEFAULT 0,
    page_number   INTEGER,
    total_pages   INTEGER,
    metadata      TEXT    NOT NULL DEFAULT '{}',
    routed_at     INTEGER NOT NULL   -- Unix nanoseconds; orders the ledger
);
CREATE INDEX IF NOT EXISTS idx_assignments_role_routed
    ON assignments (role_id, routed_at);
CREATE INDEX IF NOT EXISTS idx_assignments_routed
    ON assignments (routed_at);

CREATE TABLE IF NOT EXISTS parent_nodes (
    id                TEXT    PRIMARY KEY,
    doc_id            TEXT    NOT NULL,
    source            TEXT    NOT NULL,
    section           TEXT,
    node_type         TEXT    NOT NULL CHECK(node_type IN ('text','table','image')),
    content           TEXT    NOT NULL,
    page_number       INTEGER,
    total_pages       INTEGER,
    source_created_at INTEGER NOT NULL,
    uploaded_at       INTEGER NOT NULL   -- Unix nanoseconds; orders listings
);
CREATE INDEX IF NOT EXISTS idx_parent_nodes_doc ON parent_nodes (doc_id);
CREATE INDEX IF NOT EXISTS idx_parent_nodes_source ON parent_nodes (source, section);

CREATE TABLE IF NOT EXISTS child_nodes (
    id          TEXT    PRIMARY KEY,
    parent_id   TEXT    NOT NULL REFERENCES parent_nodes(id) ON DELETE CASCADE,
    content     TEXT    NOT NULL,
    chunk_index INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_child_nodes_parent ON child_nodes (parent_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
