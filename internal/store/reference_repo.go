package store

import (
	"context"
	"database/sql"

	"github.com/knightmint/knightmint/internal/domain"
)

// Reference lifecycle statuses.
const (
	ReferenceIssued    = "issued"
	ReferenceConfirmed = "confirmed"
	ReferenceFailed    = "failed"
)

// IssuedReference is a server-issued payment reference row. The confirmation
// endpoint only accepts references recorded here.
type IssuedReference struct {
	Reference  string
	UserKey    string
	UnlockKind domain.UnlockKind
	Amount     float64
	Status     string
	CreatedAt  int64
}

// ReferenceRepo handles persistence for issued payment references.
type ReferenceRepo struct{}

// Record stores a freshly issued reference. The primary key rejects reuse.
func (r *ReferenceRepo) Record(ctx context.Context, db *sql.DB, ref IssuedReference) error {
	const q = `INSERT INTO payment_references (reference, user_key, unlock_kind, amount, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		ref.Reference,
		ref.UserKey,
		string(ref.UnlockKind),
		ref.Amount,
		ref.Status,
		ref.CreatedAt,
	)
	if err != nil {
		return domain.WrapAppError(domain.ErrStoreWrite.Code, "record reference", err)
	}
	return nil
}

// Get retrieves an issued reference.
func (r *ReferenceRepo) Get(ctx context.Context, db *sql.DB, reference string) (IssuedReference, bool, error) {
	const q = `SELECT reference, user_key, unlock_kind, amount, status, created_at
FROM payment_references WHERE reference = ?`

	var ref IssuedReference
	var kind string
	err := db.QueryRowContext(ctx, q, reference).Scan(&ref.Reference, &ref.UserKey, &kind, &ref.Amount, &ref.Status, &ref.CreatedAt)
	if err == sql.ErrNoRows {
		return IssuedReference{}, false, nil
	}
	if err != nil {
		return IssuedReference{}, false, domain.WrapAppError(domain.ErrStoreQuery.Code, "get reference", err)
	}
	ref.UnlockKind = domain.UnlockKind(kind)
	return ref, true, nil
}

// UpdateStatus moves a reference to a terminal status.
func (r *ReferenceRepo) UpdateStatus(ctx context.Context, db *sql.DB, reference, status string) error {
	const q = `UPDATE payment_references SET status = ? WHERE reference = ?`
	res, err := db.ExecContext(ctx, q, status, reference)
	if err != nil {
		return domain.WrapAppError(domain.ErrStoreWrite.Code, "update reference status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.WrapAppError(domain.ErrStoreWrite.Code, "check rows affected", err)
	}
	if n == 0 {
		return domain.ErrReferenceUnknown
	}
	return nil
}
