// Package store provides SQLite-backed persistence for the Knightmint
// service.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_key          TEXT PRIMARY KEY,
	level             INTEGER NOT NULL DEFAULT 1,
	solved_ids_json   TEXT NOT NULL DEFAULT '[]',
	failed_puzzle_id  INTEGER NOT NULL DEFAULT 0,
	updated_at_unix   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS payment_references (
	reference    TEXT PRIMARY KEY,
	user_key     TEXT NOT NULL DEFAULT '',
	unlock_kind  TEXT NOT NULL,
	amount       REAL NOT NULL DEFAULT 0.0,
	status       TEXT NOT NULL DEFAULT 'issued',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_references_user ON payment_references(user_key, status);

CREATE TABLE IF NOT EXISTS progress_events (
	id           TEXT PRIMARY KEY,
	user_key     TEXT NOT NULL,
	puzzle_id    INTEGER NOT NULL DEFAULT 0,
	level        INTEGER NOT NULL DEFAULT 0,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user ON progress_events(user_key, created_at);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
