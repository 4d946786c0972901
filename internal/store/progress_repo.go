package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/knightmint/knightmint/internal/domain"
)

// ProgressRepo handles persistence for UserProgress records. Writes are
// last-writer-wins per user key.
type ProgressRepo struct{}

// Get retrieves the progress row for a user key. The second return is false
// when the user has no row yet.
func (r *ProgressRepo) Get(ctx context.Context, db *sql.DB, userKey string) (domain.UserProgress, bool, error) {
	const q = `SELECT level, solved_ids_json, failed_puzzle_id, updated_at_unix
FROM user_progress WHERE user_key = ?`

	var p domain.UserProgress
	var solvedJSON string
	err := db.QueryRowContext(ctx, q, userKey).Scan(&p.Level, &solvedJSON, &p.FailedPuzzleID, &p.UpdatedAtUnix)
	if err == sql.ErrNoRows {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, domain.WrapAppError(domain.ErrStoreQuery.Code, "get progress", err)
	}
	if err := json.Unmarshal([]byte(solvedJSON), &p.SolvedIDs); err != nil {
		return domain.UserProgress{}, false, domain.WrapAppError(domain.ErrStoreQuery.Code, "decode solved ids", err)
	}
	return p, true, nil
}

// Set upserts the progress row for a user key.
func (r *ProgressRepo) Set(ctx context.Context, db *sql.DB, userKey string, p domain.UserProgress) error {
	solvedJSON, err := json.Marshal(p.SolvedIDs)
	if err != nil {
		return fmt.Errorf("encode solved ids: %w", err)
	}
	if p.SolvedIDs == nil {
		solvedJSON = []byte("[]")
	}

	const q = `INSERT INTO user_progress (user_key, level, solved_ids_json, failed_puzzle_id, updated_at_unix)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_key) DO UPDATE SET
	level = excluded.level,
	solved_ids_json = excluded.solved_ids_json,
	failed_puzzle_id = excluded.failed_puzzle_id,
	updated_at_unix = excluded.updated_at_unix`

	if _, err := db.ExecContext(ctx, q, userKey, p.Level, string(solvedJSON), p.FailedPuzzleID, p.UpdatedAtUnix); err != nil {
		return domain.WrapAppError(domain.ErrStoreWrite.Code, "set progress", err)
	}
	return nil
}
