// Package domain defines the core types for the Knightmint puzzle service.
package domain

// Tier classifies puzzle difficulty, derived from the dataset's
// human-readable category label.
type Tier int

const (
	TierMateInOne   Tier = 1
	TierMateInTwo   Tier = 2
	TierMateInThree Tier = 3
)

// Square is an algebraic board coordinate such as "e2".
type Square string

// HalfMove is one half-move of a solution line.
type HalfMove struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

// Puzzle is an immutable catalog record. Solution holds the full scripted
// line: player half-moves at even indices, scripted opponent replies at odd
// indices.
type Puzzle struct {
	ID       int        `json:"id"`
	Tier     Tier       `json:"tier"`
	FEN      string     `json:"fen"`
	Prompt   string     `json:"prompt"`
	Solution []HalfMove `json:"solution"`
}

// PlayerMoveAt returns the player's half-move at the given play index
// (0 = first player move, 1 = second player move after the scripted reply).
func (p Puzzle) PlayerMoveAt(idx int) (HalfMove, bool) {
	i := idx * 2
	if i < 0 || i >= len(p.Solution) {
		return HalfMove{}, false
	}
	return p.Solution[i], true
}

// OpponentReplyAt returns the scripted opponent reply after the player's
// half-move at the given play index, if the line continues.
func (p Puzzle) OpponentReplyAt(idx int) (HalfMove, bool) {
	i := idx*2 + 1
	if i < 0 || i >= len(p.Solution) {
		return HalfMove{}, false
	}
	return p.Solution[i], true
}

// PlayerMoveCount is the number of half-moves the player must find.
func (p Puzzle) PlayerMoveCount() int {
	return (len(p.Solution) + 1) / 2
}

// UserProgress is the durable per-user record. SolvedIDs grows
// monotonically; a restart to level 1 preserves it. FailedPuzzleID is 0
// unless the user is mid-failure on that puzzle.
type UserProgress struct {
	Level          int   `json:"level"`
	SolvedIDs      []int `json:"solved_ids"`
	FailedPuzzleID int   `json:"failed_puzzle_id"`
	UpdatedAtUnix  int64 `json:"updated_at_unix"`
}

// NewUserProgress returns the default progress for a first-time user.
func NewUserProgress() UserProgress {
	return UserProgress{Level: 1}
}

// HasSolved reports whether the puzzle id is already in the solved history.
func (u UserProgress) HasSolved(id int) bool {
	for _, s := range u.SolvedIDs {
		if s == id {
			return true
		}
	}
	return false
}

// MarkSolved appends the puzzle id to the solved history unless already
// present.
func (u *UserProgress) MarkSolved(id int) {
	if !u.HasSolved(id) {
		u.SolvedIDs = append(u.SolvedIDs, id)
	}
}

// SessionState represents the puzzle session lifecycle.
type SessionState string

const (
	StateLoading        SessionState = "loading"
	StateAwaitingMove   SessionState = "awaiting_move"
	StateSolved         SessionState = "solved"
	StateLost           SessionState = "lost"
	StateAnswerRevealed SessionState = "answer_revealed"
	StateAllSolved      SessionState = "all_solved"
)

// Terminal reports whether the state accepts no further puzzle input.
func (s SessionState) Terminal() bool {
	return s == StateSolved || s == StateAllSolved
}

// UnlockKind identifies a paid recovery/assist action.
type UnlockKind string

const (
	UnlockRevive UnlockKind = "revive"
	UnlockHint   UnlockKind = "hint"
	UnlockAnswer UnlockKind = "answer"
)

// Valid reports whether the kind is one of the known unlocks.
func (k UnlockKind) Valid() bool {
	switch k {
	case UnlockRevive, UnlockHint, UnlockAnswer:
		return true
	}
	return false
}

// PaymentRequest is handed to the wallet-payment capability.
type PaymentRequest struct {
	Reference   string  `json:"reference"`
	Recipient   string  `json:"recipient"`
	TokenAmount float64 `json:"token_amount"`
	Description string  `json:"description"`
}

// PayStatus is the wallet's synchronous submission outcome.
type PayStatus string

const (
	PaySuccess   PayStatus = "success"
	PayCancelled PayStatus = "cancelled"
	PayError     PayStatus = "error"
)

// PaymentResult is returned by the wallet-payment capability. A success
// means the payment was submitted, not that it is finalized on-chain.
type PaymentResult struct {
	Status        PayStatus `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reference     string    `json:"reference,omitempty"`
}

// ConfirmStatus is the payment network's view of a submitted transaction.
type ConfirmStatus string

const (
	ConfirmMined   ConfirmStatus = "mined"
	ConfirmPending ConfirmStatus = "pending"
	ConfirmFailed  ConfirmStatus = "failed"
)

// UnlockOutcome terminates every unlock attempt, success or not.
type UnlockOutcome string

const (
	OutcomeApplied     UnlockOutcome = "applied"
	OutcomeBusy        UnlockOutcome = "busy"
	OutcomeUnavailable UnlockOutcome = "wallet_unavailable"
	OutcomeCancelled   UnlockOutcome = "cancelled"
	OutcomeRejected    UnlockOutcome = "rejected"
	OutcomeTimeout     UnlockOutcome = "timeout"
	OutcomeError       UnlockOutcome = "error"
)

// ProgressEvent is one row of the append-only progress event log.
type ProgressEvent struct {
	ID          string
	UserKey     string
	PuzzleID    int
	Level       int
	EventType   string
	PayloadJSON string
	CreatedAt   int64
}

// Progress event types.
const (
	EventPuzzleSolved  = "puzzle_solved"
	EventPuzzleFailed  = "puzzle_failed"
	EventUnlockApplied = "unlock_applied"
	EventLevelRestart  = "level_restart"
)
