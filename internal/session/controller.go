package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/knightmint/knightmint/internal/catalog"
	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/progress"
	"github.com/knightmint/knightmint/internal/rules"
)

// Recorder appends progress events to the durable event log.
type Recorder interface {
	Record(ctx context.Context, ev domain.ProgressEvent) error
}

// Purchaser runs a full payment flow (reference, wallet, confirmation poll)
// for one unlock and reports the terminal outcome. OutcomeApplied means the
// payment reached the finalized mined status.
type Purchaser interface {
	Purchase(ctx context.Context, userKey string, kind domain.UnlockKind) (domain.UnlockOutcome, error)
}

// MoveResult classifies a submitted move for the UI.
type MoveResult string

const (
	MoveCorrect MoveResult = "correct"
	MoveWrong   MoveResult = "wrong"
	MoveIllegal MoveResult = "illegal"
	MoveIgnored MoveResult = "ignored"
)

// Controller owns one user's session. All mutation is serialized behind a
// single mutex; timer and payment goroutines re-enter through it, so the
// session behaves like a single-threaded event loop.
type Controller struct {
	userKey      string
	catalog      *catalog.Catalog
	oracle       rules.Oracle
	store        progress.Store
	recorder     Recorder  // optional
	purchaser    Purchaser // optional; nil disables unlocks
	advanceDelay time.Duration

	mu      sync.Mutex
	snap    Snapshot
	payBusy bool
}

// NewController creates a controller; call Start before use.
func NewController(userKey string, cat *catalog.Catalog, oracle rules.Oracle, store progress.Store, recorder Recorder, purchaser Purchaser, advanceDelay time.Duration) *Controller {
	return &Controller{
		userKey:      userKey,
		catalog:      cat,
		oracle:       oracle,
		store:        store,
		recorder:     recorder,
		purchaser:    purchaser,
		advanceDelay: advanceDelay,
	}
}

// Start reads persisted progress and loads the puzzle for the current
// level. A persisted failed puzzle id pins the selection so the user
// resumes the same failure.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prog, found, err := c.store.Get(ctx, c.userKey)
	if err != nil {
		return err
	}
	if !found {
		prog = domain.NewUserProgress()
	}
	c.snap = Snapshot{
		Session:  Session{State: domain.StateLoading},
		Progress: prog,
	}
	c.loadLocked(ctx)
	return nil
}

// Snapshot returns a copy of the current session and progress.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SubmitMove classifies and applies a move. Moves are ignored while a
// payment is in flight or in any state other than awaiting a move.
func (c *Controller) SubmitMove(ctx context.Context, from, to domain.Square) (MoveResult, Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payBusy || c.snap.Session.State != domain.StateAwaitingMove {
		return MoveIgnored, c.snap
	}

	newFEN, err := c.oracle.ApplyMove(c.snap.Session.FEN, from, to, 0)
	if err != nil {
		c.applyLocked(ctx, EvMoveIllegal{})
		return MoveIllegal, c.snap
	}

	expected, ok := c.snap.Session.Puzzle.PlayerMoveAt(c.snap.Session.MoveIndex)
	if ok && expected.From == from && expected.To == to {
		c.applyLocked(ctx, EvMoveCorrect{NewFEN: newFEN})
		return MoveCorrect, c.snap
	}

	c.applyLocked(ctx, EvMoveWrong{})
	return MoveWrong, c.snap
}

// RequestUnlock runs the paid unlock flow for kind. The mutex is released
// while the payment flow blocks on the wallet and the confirmation poll;
// payBusy keeps every other operation a no-op meanwhile. A confirmation
// that lands after the session moved to another puzzle is dropped as a
// safe no-op.
func (c *Controller) RequestUnlock(ctx context.Context, kind domain.UnlockKind) (domain.UnlockOutcome, error) {
	c.mu.Lock()

	if !kind.Valid() {
		c.mu.Unlock()
		return domain.OutcomeError, domain.ErrBadUnlockKind
	}
	if c.payBusy {
		c.mu.Unlock()
		return domain.OutcomeBusy, domain.ErrPaymentBusy
	}
	if err := c.unlockGuardLocked(kind); err != nil {
		c.mu.Unlock()
		return domain.OutcomeError, err
	}
	if c.purchaser == nil {
		c.mu.Unlock()
		return domain.OutcomeUnavailable, domain.ErrWalletGone
	}

	c.payBusy = true
	gen := c.snap.Session.Generation
	c.mu.Unlock()

	outcome, err := c.purchaser.Purchase(ctx, c.userKey, kind)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.payBusy = false

	if err != nil {
		if outcome == "" {
			outcome = domain.OutcomeError
		}
		return outcome, err
	}
	if outcome != domain.OutcomeApplied {
		return outcome, nil
	}
	if c.snap.Session.Generation != gen {
		// Payment confirmed for a puzzle the session has already left.
		return domain.OutcomeApplied, nil
	}

	switch kind {
	case domain.UnlockRevive:
		c.applyLocked(ctx, EvReviveConfirmed{})
	case domain.UnlockHint:
		c.applyLocked(ctx, EvHintConfirmed{})
	case domain.UnlockAnswer:
		c.applyLocked(ctx, EvAnswerConfirmed{})
	}
	return domain.OutcomeApplied, nil
}

// unlockGuardLocked rejects unlocks that are meaningless in the current
// state before any payment is attempted.
func (c *Controller) unlockGuardLocked(kind domain.UnlockKind) error {
	state := c.snap.Session.State
	switch kind {
	case domain.UnlockRevive:
		if state != domain.StateLost {
			return domain.ErrNotLost
		}
	case domain.UnlockHint:
		if state != domain.StateAwaitingMove {
			return domain.ErrInvalidTransition
		}
		if c.snap.Session.HintUsed {
			return domain.ErrHintAlreadyUsed
		}
	case domain.UnlockAnswer:
		if state != domain.StateAwaitingMove {
			return domain.ErrInvalidTransition
		}
	}
	return nil
}

// Proceed advances past a revealed answer, counting the puzzle as solved.
// Outside the answer-revealed state it is a no-op, so repeated calls cannot
// double-advance.
func (c *Controller) Proceed(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payBusy {
		return c.snap
	}
	c.applyLocked(ctx, EvProceed{})
	return c.snap
}

// Restart abandons a failure without paying. At level 1 the same-tier
// puzzle is reselected; above level 1 the level resets to 1 with the solved
// history preserved.
func (c *Controller) Restart(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payBusy {
		return c.snap
	}
	c.applyLocked(ctx, EvRestart{})
	return c.snap
}

// applyLocked runs one Step and executes its effects. Callers hold the
// mutex.
func (c *Controller) applyLocked(ctx context.Context, ev Event) {
	snap, effects := Step(c.snap, ev)
	c.snap = snap

	for _, eff := range effects {
		switch e := eff.(type) {
		case EffPersist:
			if err := c.store.Set(ctx, c.userKey, c.snap.Progress); err != nil {
				log.Printf("[session] persist progress for %s: %v", c.userKey, err)
			}
		case EffRecord:
			c.record(ctx, e)
		case EffLoad:
			c.loadLocked(ctx)
		case EffScheduleAdvance:
			gen := c.snap.Session.Generation
			time.AfterFunc(c.advanceDelay, func() { c.onTimer(gen, EvAdvanceElapsed{}) })
		case EffScheduleReply:
			gen := c.snap.Session.Generation
			reply := e.Reply
			time.AfterFunc(c.advanceDelay, func() { c.onReply(gen, reply) })
		}
	}
}

// loadLocked selects the puzzle for the current level and dispatches the
// load event. Callers hold the mutex.
func (c *Controller) loadLocked(ctx context.Context) {
	p, ok := c.catalog.Select(c.snap.Progress.Level, c.snap.Progress.SolvedIDs, c.snap.Progress.FailedPuzzleID)
	if !ok {
		c.applyLocked(ctx, EvExhausted{})
		return
	}
	c.applyLocked(ctx, EvLoaded{Puzzle: p})
}

// onTimer delivers a deferred event unless the session generation moved on.
func (c *Controller) onTimer(gen uint64, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Session.Generation != gen {
		return
	}
	c.applyLocked(context.Background(), ev)
}

// onReply applies the scripted opponent half-move after the display delay.
func (c *Controller) onReply(gen uint64, reply domain.HalfMove) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Session.Generation != gen {
		return
	}
	newFEN, err := c.oracle.ApplyMove(c.snap.Session.FEN, reply.From, reply.To, 0)
	if err != nil {
		log.Printf("[session] scripted reply %s-%s rejected for puzzle %d: %v",
			reply.From, reply.To, c.snap.Session.Puzzle.ID, err)
		return
	}
	c.applyLocked(context.Background(), EvOpponentReplied{NewFEN: newFEN})
}

func (c *Controller) record(ctx context.Context, e EffRecord) {
	if c.recorder == nil {
		return
	}
	ev := domain.ProgressEvent{
		UserKey:   c.userKey,
		PuzzleID:  e.PuzzleID,
		Level:     c.snap.Progress.Level,
		EventType: e.Type,
		CreatedAt: time.Now().Unix(),
	}
	if err := c.recorder.Record(ctx, ev); err != nil {
		log.Printf("[session] record %s for %s: %v", e.Type, c.userKey, err)
	}
}
