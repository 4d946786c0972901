package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
)

func TestReferenceRepo_RecordAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := &ReferenceRepo{}
	ctx := context.Background()

	in := IssuedReference{
		Reference:  "ref-abc-123",
		UserKey:    "0xalice",
		UnlockKind: domain.UnlockRevive,
		Amount:     0.5,
		Status:     ReferenceIssued,
		CreatedAt:  time.Now().Unix(),
	}
	if err := repo.Record(ctx, db, in); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out, found, err := repo.Get(ctx, db, "ref-abc-123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected reference to be found")
	}
	if out.UnlockKind != domain.UnlockRevive || out.Status != ReferenceIssued || out.Amount != 0.5 {
		t.Errorf("Get = %+v, want %+v", out, in)
	}
}

func TestReferenceRepo_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	repo := &ReferenceRepo{}
	ctx := context.Background()

	ref := IssuedReference{Reference: "ref-dup", UnlockKind: domain.UnlockHint, Status: ReferenceIssued, CreatedAt: 1}
	if err := repo.Record(ctx, db, ref); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := repo.Record(ctx, db, ref); err == nil {
		t.Error("expected error on duplicate reference, got nil")
	}
}

func TestReferenceRepo_UnknownGet(t *testing.T) {
	db := newTestDB(t)
	repo := &ReferenceRepo{}

	_, found, err := repo.Get(context.Background(), db, "never-issued")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected not found for unissued reference")
	}
}

func TestReferenceRepo_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	repo := &ReferenceRepo{}
	ctx := context.Background()

	ref := IssuedReference{Reference: "ref-upd", UnlockKind: domain.UnlockAnswer, Status: ReferenceIssued, CreatedAt: 1}
	if err := repo.Record(ctx, db, ref); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := repo.UpdateStatus(ctx, db, "ref-upd", ReferenceConfirmed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	out, _, err := repo.Get(ctx, db, "ref-upd")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Status != ReferenceConfirmed {
		t.Errorf("Status = %q, want confirmed", out.Status)
	}

	err = repo.UpdateStatus(ctx, db, "ref-missing", ReferenceFailed)
	if !errors.Is(err, domain.ErrReferenceUnknown) {
		t.Errorf("err = %v, want ErrReferenceUnknown", err)
	}
}
