package progress

import (
	"context"
	"strings"

	"github.com/knightmint/knightmint/internal/domain"
)

// IsGuestKey reports whether a user key belongs to an unauthenticated
// guest. Guests get device-local progress; wallet addresses go to the
// authoritative store.
func IsGuestKey(userKey string) bool {
	return strings.HasPrefix(userKey, "guest:") || strings.HasPrefix(userKey, "guest-")
}

// Routed splits progress between the wallet-keyed store and the local
// guest store. A nil Guest routes everything to Wallet.
type Routed struct {
	Wallet Store
	Guest  Store
}

func (r *Routed) pick(userKey string) Store {
	if r.Guest != nil && IsGuestKey(userKey) {
		return r.Guest
	}
	return r.Wallet
}

// Get retrieves the stored progress for a user key.
func (r *Routed) Get(ctx context.Context, userKey string) (domain.UserProgress, bool, error) {
	return r.pick(userKey).Get(ctx, userKey)
}

// Set stores the progress for a user key.
func (r *Routed) Set(ctx context.Context, userKey string, p domain.UserProgress) error {
	return r.pick(userKey).Set(ctx, userKey, p)
}
