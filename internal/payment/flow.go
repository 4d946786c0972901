package payment

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/knightmint/knightmint/internal/config"
	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/store"
)

// Wallet is the wallet-payment capability. IsAvailable reports whether the
// capability is reachable at all; Pay submits one payment and returns the
// wallet's synchronous result, which does not imply on-chain finality.
type Wallet interface {
	IsAvailable() bool
	Pay(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
}

// unlockDescriptions label payments in the wallet prompt.
var unlockDescriptions = map[domain.UnlockKind]string{
	domain.UnlockRevive: "Revive this puzzle",
	domain.UnlockHint:   "Reveal a hint",
	domain.UnlockAnswer: "Reveal the answer",
}

// Flow runs the full paid-unlock pipeline: rate check, reference issuance,
// wallet payment, confirmation poll. It implements the session layer's
// Purchaser contract; per-session serialization is the caller's job, Flow
// itself only guards payment attempt rates per user.
type Flow struct {
	DB       *sql.DB
	Refs     *store.ReferenceRepo
	Wallet   Wallet
	Verifier *Verifier

	Prices       config.Prices
	Recipient    string
	PollInterval time.Duration
	MaxAttempts  int
	RatePerMin   int

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewFlow wires the flow from configuration.
func NewFlow(db *sql.DB, wallet Wallet, verifier *Verifier, cfg *config.Config) *Flow {
	return &Flow{
		DB:           db,
		Refs:         &store.ReferenceRepo{},
		Wallet:       wallet,
		Verifier:     verifier,
		Prices:       cfg.Prices,
		Recipient:    cfg.RecipientAddress,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		MaxAttempts:  cfg.PollMaxAttempts,
		RatePerMin:   cfg.RateLimitPerMinute,
		rateCounts:   make(map[string]*rateBucket),
	}
}

// Purchase runs one unlock payment end to end and reports the terminal
// outcome. OutcomeApplied is returned only for a mined, verified payment.
func (f *Flow) Purchase(ctx context.Context, userKey string, kind domain.UnlockKind) (domain.UnlockOutcome, error) {
	if !kind.Valid() {
		return domain.OutcomeError, domain.ErrBadUnlockKind
	}
	if err := f.checkRate(userKey); err != nil {
		return domain.OutcomeError, err
	}
	if f.Wallet == nil || !f.Wallet.IsAvailable() {
		return domain.OutcomeUnavailable, domain.ErrWalletGone
	}

	reference := NewReference()
	issued := store.IssuedReference{
		Reference:  reference,
		UserKey:    userKey,
		UnlockKind: kind,
		Amount:     f.Prices.For(kind),
		Status:     store.ReferenceIssued,
		CreatedAt:  time.Now().Unix(),
	}
	if err := f.Refs.Record(ctx, f.DB, issued); err != nil {
		return domain.OutcomeError, err
	}

	result, err := f.Wallet.Pay(ctx, domain.PaymentRequest{
		Reference:   reference,
		Recipient:   f.Recipient,
		TokenAmount: issued.Amount,
		Description: unlockDescriptions[kind],
	})
	if err != nil {
		f.mark(ctx, reference, store.ReferenceFailed)
		return domain.OutcomeError, err
	}

	switch result.Status {
	case domain.PaySuccess:
	case domain.PayCancelled:
		f.mark(ctx, reference, store.ReferenceFailed)
		return domain.OutcomeCancelled, nil
	default:
		f.mark(ctx, reference, store.ReferenceFailed)
		return domain.OutcomeRejected, nil
	}

	outcome, err := f.confirm(ctx, result.TransactionID, reference)
	switch outcome {
	case domain.OutcomeApplied:
		f.mark(ctx, reference, store.ReferenceConfirmed)
	case domain.OutcomeRejected:
		f.mark(ctx, reference, store.ReferenceFailed)
	}
	// Timeouts leave the reference issued: a late mine can still be
	// confirmed through the confirm endpoint.
	return outcome, err
}

// confirm polls the verifier until the transaction reaches a terminal
// status or the attempt budget runs out.
func (f *Flow) confirm(ctx context.Context, transactionID, reference string) (domain.UnlockOutcome, error) {
	check := func(ctx context.Context) (domain.UnlockOutcome, bool, error) {
		status, err := f.Verifier.Verify(ctx, transactionID, reference)
		if err != nil {
			return domain.OutcomeError, true, err
		}
		switch status {
		case domain.ConfirmMined:
			return domain.OutcomeApplied, true, nil
		case domain.ConfirmPending:
			return "", false, nil
		default:
			return domain.OutcomeRejected, true, nil
		}
	}
	return PollUntil(ctx, check, f.PollInterval, f.MaxAttempts)
}

// checkRate enforces a per-user sliding window on payment attempts.
// The window is 60 seconds.
func (f *Flow) checkRate(userKey string) error {
	if f.RatePerMin <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().Unix()
	// Drop other users' expired windows so the map tracks only active users.
	for key, b := range f.rateCounts {
		if key != userKey && now-b.windowStart > 60 {
			delete(f.rateCounts, key)
		}
	}
	bucket, ok := f.rateCounts[userKey]
	if !ok {
		f.rateCounts[userKey] = &rateBucket{count: 1, windowStart: now}
		return nil
	}
	if now-bucket.windowStart > 60 {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}
	if bucket.count >= f.RatePerMin {
		return domain.ErrRateLimited
	}
	bucket.count++
	return nil
}

func (f *Flow) mark(ctx context.Context, reference, status string) {
	if err := f.Refs.UpdateStatus(ctx, f.DB, reference, status); err != nil && !errors.Is(err, domain.ErrReferenceUnknown) {
		log.Printf("[payment] mark reference %s %s: %v", reference, status, err)
	}
}
