// Package progress persists per-user puzzle progress. The authoritative
// store is SQLite keyed by wallet address; a local LevelDB store keeps guest
// progress when no authenticated user key is available.
package progress

import (
	"context"
	"database/sql"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/store"
)

// Store is the keyed get/set progress interface. Writes are
// last-writer-wins; no cross-device reconciliation is attempted.
type Store interface {
	Get(ctx context.Context, userKey string) (domain.UserProgress, bool, error)
	Set(ctx context.Context, userKey string, p domain.UserProgress) error
}

// SQLStore is the authoritative Store backed by the SQLite progress table.
type SQLStore struct {
	DB   *sql.DB
	Repo *store.ProgressRepo

	// now is swappable for tests.
	now func() time.Time
}

// NewSQLStore wraps an open database as a progress Store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db, Repo: &store.ProgressRepo{}, now: time.Now}
}

// Get retrieves the stored progress for a user key.
func (s *SQLStore) Get(ctx context.Context, userKey string) (domain.UserProgress, bool, error) {
	return s.Repo.Get(ctx, s.DB, userKey)
}

// Set upserts the progress for a user key, stamping the write time.
func (s *SQLStore) Set(ctx context.Context, userKey string, p domain.UserProgress) error {
	p.UpdatedAtUnix = s.now().Unix()
	return s.Repo.Set(ctx, s.DB, userKey, p)
}
