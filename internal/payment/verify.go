package payment

import (
	"context"
	"database/sql"
	"strings"

	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/store"
)

// Verifier decides whether a submitted transaction pays for an issued
// reference. It trusts only the portal's record and the server-side
// reference ledger, never the caller's claims.
type Verifier struct {
	Source    TransactionSource
	DB        *sql.DB
	Refs      *store.ReferenceRepo
	Recipient string
}

// NewVerifier creates a verifier bound to the configured recipient address.
func NewVerifier(source TransactionSource, db *sql.DB, recipient string) *Verifier {
	return &Verifier{
		Source:    source,
		DB:        db,
		Refs:      &store.ReferenceRepo{},
		Recipient: recipient,
	}
}

// Verify checks transactionID against the issued reference. It returns the
// portal's view of the transaction mapped onto ConfirmStatus: mined only
// when the reference matches an issued one, the recipient matches
// (case-insensitive), and the portal reports the transaction mined. Any
// mismatch or malformed record is failed, never mined. Statuses other than
// the terminal mined/failed/cancelled are pending.
func (v *Verifier) Verify(ctx context.Context, transactionID, reference string) (domain.ConfirmStatus, error) {
	issued, found, err := v.Refs.Get(ctx, v.DB, reference)
	if err != nil {
		return domain.ConfirmFailed, err
	}
	if !found {
		return domain.ConfirmFailed, domain.ErrReferenceUnknown
	}

	tx, err := v.Source.Transaction(ctx, transactionID)
	if err != nil {
		return domain.ConfirmFailed, err
	}

	if tx.Reference == "" || tx.Reference != issued.Reference {
		return domain.ConfirmFailed, nil
	}
	if !strings.EqualFold(tx.RecipientAddress, v.Recipient) {
		return domain.ConfirmFailed, nil
	}

	switch tx.TransactionStatus {
	case "mined":
		return domain.ConfirmMined, nil
	case "failed", "cancelled":
		return domain.ConfirmFailed, nil
	default:
		// The portal reports in-flight transactions with intermediate
		// statuses like "submitted". Anything not terminal keeps polling.
		return domain.ConfirmPending, nil
	}
}

// MarkOutcome records the terminal status of a reference in the ledger.
func (v *Verifier) MarkOutcome(ctx context.Context, reference string, status domain.ConfirmStatus) error {
	ledger := store.ReferenceFailed
	if status == domain.ConfirmMined {
		ledger = store.ReferenceConfirmed
	}
	return v.Refs.UpdateStatus(ctx, v.DB, reference, ledger)
}
