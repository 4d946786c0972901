package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
	"github.com/oklog/ulid/v2"
)

// EventRepo handles the append-only progress event log.
type EventRepo struct{}

// Append inserts a progress event, assigning a ULID when the id is empty.
func (r *EventRepo) Append(ctx context.Context, db *sql.DB, event domain.ProgressEvent) error {
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.PayloadJSON == "" {
		event.PayloadJSON = "{}"
	}

	const q = `INSERT INTO progress_events (id, user_key, puzzle_id, level, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		event.ID,
		event.UserKey,
		event.PuzzleID,
		event.Level,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByUser returns a user's events ordered oldest first.
func (r *EventRepo) ListByUser(ctx context.Context, db *sql.DB, userKey string) ([]domain.ProgressEvent, error) {
	const q = `SELECT id, user_key, puzzle_id, level, event_type, payload_json, created_at
FROM progress_events
WHERE user_key = ?
ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, q, userKey)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.ProgressEvent
	for rows.Next() {
		var e domain.ProgressEvent
		if err := rows.Scan(&e.ID, &e.UserKey, &e.PuzzleID, &e.Level, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func newEventID() string {
	now := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
