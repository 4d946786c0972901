package payment

import (
	"context"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
)

// CheckFunc inspects a pending payment once. done=false means the check is
// inconclusive and polling should continue.
type CheckFunc func(ctx context.Context) (domain.UnlockOutcome, bool, error)

// PollUntil runs check every interval until it reports done, the attempt
// budget runs out, or ctx is cancelled. Every unlock flow confirms through
// this one loop so retry behavior stays uniform.
func PollUntil(ctx context.Context, check CheckFunc, interval time.Duration, maxAttempts int) (domain.UnlockOutcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		outcome, done, err := check(ctx)
		if err != nil {
			return domain.OutcomeError, err
		}
		if done {
			return outcome, nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return domain.OutcomeError, ctx.Err()
		case <-ticker.C:
		}
	}
	return domain.OutcomeTimeout, domain.ErrConfirmTimeout
}
