package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/knightmint/knightmint/internal/catalog"
	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/rules"
)

// One puzzle per tier keeps selection deterministic without touching the
// catalog's random source.
const testDataset = `{"problems":[
  {"problemid":1,"first":"White to move. Find the best move!","type":"Mate in One",
   "fen":"4k3/8/8/8/8/8/3PP3/4K3 w - - 0 1","moves":"e2-e4"},
  {"problemid":2,"first":"White to move. Mate in two!","type":"Mate in Two",
   "fen":"7k/1R6/8/8/8/8/P7/6K1 w - - 0 1","moves":"b7-b6;h8-g8;a2-a4"}
]}`

const tierOneOnlyDataset = `{"problems":[
  {"problemid":1,"first":"White to move. Find the best move!","type":"Mate in One",
   "fen":"4k3/8/8/8/8/8/3PP3/4K3 w - - 0 1","moves":"e2-e4"}
]}`

type fakeStore struct {
	mu   sync.Mutex
	data map[string]domain.UserProgress
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]domain.UserProgress)}
}

func (f *fakeStore) Get(ctx context.Context, userKey string) (domain.UserProgress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.data[userKey]
	return p, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, userKey string, p domain.UserProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[userKey] = p
	return nil
}

func (f *fakeStore) get(userKey string) domain.UserProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[userKey]
}

type fakeRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *fakeRecorder) Record(ctx context.Context, ev domain.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.EventType)
	return nil
}

func (r *fakeRecorder) recorded(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type fakePurchaser struct {
	mu      sync.Mutex
	outcome domain.UnlockOutcome
	err     error
	calls   int

	// When set, Purchase signals started and blocks until release closes.
	started chan struct{}
	release chan struct{}
}

func (p *fakePurchaser) Purchase(ctx context.Context, userKey string, kind domain.UnlockKind) (domain.UnlockOutcome, error) {
	p.mu.Lock()
	p.calls++
	started, release := p.started, p.release
	p.started = nil
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	return p.outcome, p.err
}

func (p *fakePurchaser) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestController(t *testing.T, dataset string, seed *domain.UserProgress, purchaser Purchaser) (*Controller, *fakeStore, *fakeRecorder) {
	t.Helper()
	cat, err := catalog.FromJSON([]byte(dataset))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := newFakeStore()
	if seed != nil {
		st.data["u1"] = *seed
	}
	rec := &fakeRecorder{}
	c := NewController("u1", cat, rules.NewEngine(), st, rec, purchaser, 5*time.Millisecond)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, st, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestControllerSolveAdvancesLevel(t *testing.T) {
	c, st, rec := newTestController(t, testDataset, nil, nil)
	ctx := context.Background()

	snap := c.Snapshot()
	if snap.Session.State != domain.StateAwaitingMove || snap.Session.Puzzle.ID != 1 {
		t.Fatalf("start snapshot = %+v", snap.Session)
	}

	result, snap := c.SubmitMove(ctx, "e2", "e4")
	if result != MoveCorrect {
		t.Fatalf("result = %s, want correct", result)
	}
	if snap.Session.State != domain.StateSolved || snap.Progress.Level != 2 {
		t.Fatalf("after solve: state = %s, level = %d", snap.Session.State, snap.Progress.Level)
	}

	// The display delay elapses and the next puzzle loads.
	waitFor(t, func() bool { return c.Snapshot().Session.State == domain.StateAwaitingMove })

	stored := st.get("u1")
	if stored.Level != 2 || !stored.HasSolved(1) {
		t.Errorf("persisted progress = %+v", stored)
	}
	if !rec.recorded(domain.EventPuzzleSolved) {
		t.Errorf("solve not recorded")
	}
}

func TestControllerWrongMoveLoses(t *testing.T) {
	c, st, rec := newTestController(t, testDataset, nil, nil)
	ctx := context.Background()

	result, snap := c.SubmitMove(ctx, "d2", "d4")
	if result != MoveWrong {
		t.Fatalf("result = %s, want wrong", result)
	}
	if snap.Session.State != domain.StateLost {
		t.Fatalf("state = %s, want lost", snap.Session.State)
	}
	if got := st.get("u1").FailedPuzzleID; got != 1 {
		t.Errorf("persisted failed puzzle id = %d, want 1", got)
	}
	if !rec.recorded(domain.EventPuzzleFailed) {
		t.Errorf("failure not recorded")
	}

	// Further moves are ignored while lost.
	if result, _ := c.SubmitMove(ctx, "e2", "e4"); result != MoveIgnored {
		t.Errorf("move while lost = %s, want ignored", result)
	}
}

func TestControllerIllegalMoveKeepsState(t *testing.T) {
	c, _, _ := newTestController(t, testDataset, nil, nil)

	result, snap := c.SubmitMove(context.Background(), "e2", "e5")
	if result != MoveIllegal {
		t.Fatalf("result = %s, want illegal", result)
	}
	if snap.Session.State != domain.StateAwaitingMove || snap.Session.MoveIndex != 0 {
		t.Fatalf("illegal move mutated the session: %+v", snap.Session)
	}
}

func TestControllerResumesPersistedFailure(t *testing.T) {
	seed := domain.NewUserProgress()
	seed.FailedPuzzleID = 1
	c, _, _ := newTestController(t, testDataset, &seed, nil)

	snap := c.Snapshot()
	if snap.Session.State != domain.StateLost || snap.Session.Puzzle.ID != 1 {
		t.Fatalf("resume snapshot = %+v, want lost on puzzle 1", snap.Session)
	}
}

func TestControllerScriptedOpponentReply(t *testing.T) {
	seed := domain.NewUserProgress()
	seed.Level = 4 // tier two
	c, _, _ := newTestController(t, testDataset, &seed, nil)
	ctx := context.Background()

	snap := c.Snapshot()
	if snap.Session.Puzzle.ID != 2 {
		t.Fatalf("level 4 selected puzzle %d, want 2", snap.Session.Puzzle.ID)
	}

	result, snap := c.SubmitMove(ctx, "b7", "b6")
	if result != MoveCorrect {
		t.Fatalf("result = %s, want correct", result)
	}
	if snap.Session.State != domain.StateAwaitingMove || snap.Session.MoveIndex != 1 {
		t.Fatalf("mid-line snapshot = %+v", snap.Session)
	}

	// The scripted reply lands after the display delay.
	waitFor(t, func() bool { return c.Snapshot().Session.Prompt == msgOpponent })

	result, snap = c.SubmitMove(ctx, "a2", "a4")
	if result != MoveCorrect {
		t.Fatalf("final half-move result = %s, want correct", result)
	}
	if snap.Session.State != domain.StateSolved || snap.Progress.Level != 5 {
		t.Fatalf("after final half-move: state = %s, level = %d", snap.Session.State, snap.Progress.Level)
	}
}

func TestControllerReviveUnlock(t *testing.T) {
	p := &fakePurchaser{outcome: domain.OutcomeApplied}
	c, st, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	c.SubmitMove(ctx, "d2", "d4")

	outcome, err := c.RequestUnlock(ctx, domain.UnlockRevive)
	if err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}

	snap := c.Snapshot()
	if snap.Session.State != domain.StateAwaitingMove {
		t.Fatalf("state = %s, want awaiting_move after revive", snap.Session.State)
	}
	if snap.Session.FEN != snap.Session.Puzzle.FEN {
		t.Errorf("revive did not restore the initial position")
	}
	if got := st.get("u1").FailedPuzzleID; got != 0 {
		t.Errorf("persisted failed puzzle id = %d, want cleared", got)
	}
}

func TestControllerUnlockDeclined(t *testing.T) {
	p := &fakePurchaser{outcome: domain.OutcomeCancelled}
	c, _, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	c.SubmitMove(ctx, "d2", "d4")

	outcome, err := c.RequestUnlock(ctx, domain.UnlockRevive)
	if err != nil {
		t.Fatalf("RequestUnlock: %v", err)
	}
	if outcome != domain.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", outcome)
	}
	if got := c.Snapshot().Session.State; got != domain.StateLost {
		t.Fatalf("state = %s, declined payment must leave the session lost", got)
	}

	// The user can retry the payment afterwards.
	p.outcome = domain.OutcomeApplied
	if outcome, _ := c.RequestUnlock(ctx, domain.UnlockRevive); outcome != domain.OutcomeApplied {
		t.Fatalf("retry outcome = %s", outcome)
	}
}

func TestControllerHintSingleUse(t *testing.T) {
	p := &fakePurchaser{outcome: domain.OutcomeApplied}
	c, _, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	outcome, err := c.RequestUnlock(ctx, domain.UnlockHint)
	if err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}
	if got := c.Snapshot().Session.HintSquare; got != "e2" {
		t.Fatalf("hint square = %s, want e2", got)
	}

	// A second hint is rejected before any payment happens.
	_, err = c.RequestUnlock(ctx, domain.UnlockHint)
	if !errors.Is(err, domain.ErrHintAlreadyUsed) {
		t.Fatalf("err = %v, want ErrHintAlreadyUsed", err)
	}
	if p.callCount() != 1 {
		t.Fatalf("purchaser called %d times, want 1", p.callCount())
	}
}

func TestControllerAnswerAndProceed(t *testing.T) {
	p := &fakePurchaser{outcome: domain.OutcomeApplied}
	c, st, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	outcome, err := c.RequestUnlock(ctx, domain.UnlockAnswer)
	if err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, err = %v", outcome, err)
	}
	snap := c.Snapshot()
	if snap.Session.State != domain.StateAnswerRevealed {
		t.Fatalf("state = %s, want answer_revealed", snap.Session.State)
	}
	if snap.Session.AnswerMove == nil || snap.Session.AnswerMove.From != "e2" {
		t.Fatalf("answer move = %v", snap.Session.AnswerMove)
	}

	snap = c.Proceed(ctx)
	if snap.Progress.Level != 2 || !snap.Progress.HasSolved(1) {
		t.Fatalf("proceed progress = %+v", snap.Progress)
	}

	// Proceed is idempotent: the second call cannot advance again.
	snap = c.Proceed(ctx)
	if snap.Progress.Level != 2 {
		t.Fatalf("repeated proceed advanced to level %d", snap.Progress.Level)
	}
	if got := st.get("u1").Level; got != 2 {
		t.Errorf("persisted level = %d, want 2", got)
	}
}

func TestControllerUnlockGuards(t *testing.T) {
	p := &fakePurchaser{outcome: domain.OutcomeApplied}
	c, _, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	if _, err := c.RequestUnlock(ctx, domain.UnlockRevive); !errors.Is(err, domain.ErrNotLost) {
		t.Fatalf("revive while playing: err = %v, want ErrNotLost", err)
	}
	if _, err := c.RequestUnlock(ctx, "banana"); !errors.Is(err, domain.ErrBadUnlockKind) {
		t.Fatalf("bad kind: err = %v, want ErrBadUnlockKind", err)
	}
	if p.callCount() != 0 {
		t.Fatalf("purchaser called %d times for rejected requests", p.callCount())
	}
}

func TestControllerNilPurchaser(t *testing.T) {
	c, _, _ := newTestController(t, testDataset, nil, nil)
	ctx := context.Background()

	c.SubmitMove(ctx, "d2", "d4")

	outcome, err := c.RequestUnlock(ctx, domain.UnlockRevive)
	if !errors.Is(err, domain.ErrWalletGone) {
		t.Fatalf("err = %v, want ErrWalletGone", err)
	}
	if outcome != domain.OutcomeUnavailable {
		t.Fatalf("outcome = %s, want wallet_unavailable", outcome)
	}
}

func TestControllerPaymentInFlightBlocksEverything(t *testing.T) {
	p := &fakePurchaser{
		outcome: domain.OutcomeApplied,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, _, _ := newTestController(t, testDataset, nil, p)
	ctx := context.Background()

	done := make(chan struct{})
	var outcome domain.UnlockOutcome
	go func() {
		outcome, _ = c.RequestUnlock(ctx, domain.UnlockHint)
		close(done)
	}()
	<-p.started

	if result, _ := c.SubmitMove(ctx, "e2", "e4"); result != MoveIgnored {
		t.Errorf("move during payment = %s, want ignored", result)
	}
	if snap := c.Proceed(ctx); snap.Session.State != domain.StateAwaitingMove {
		t.Errorf("proceed during payment changed state to %s", snap.Session.State)
	}
	if outcome2, err := c.RequestUnlock(ctx, domain.UnlockAnswer); !errors.Is(err, domain.ErrPaymentBusy) || outcome2 != domain.OutcomeBusy {
		t.Errorf("second unlock during payment: outcome = %s, err = %v", outcome2, err)
	}

	close(p.release)
	<-done

	if outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if got := c.Snapshot().Session.HintSquare; got != "e2" {
		t.Fatalf("hint square = %s after confirmed payment", got)
	}
}

func TestControllerRestartAboveLevelOne(t *testing.T) {
	seed := domain.NewUserProgress()
	seed.Level = 4
	seed.SolvedIDs = []int{1}
	c, st, rec := newTestController(t, testDataset, &seed, nil)
	ctx := context.Background()

	// Lose the tier-two puzzle, then restart without paying.
	if result, _ := c.SubmitMove(ctx, "a2", "a4"); result != MoveWrong {
		t.Fatalf("setup move was not wrong")
	}
	snap := c.Restart(ctx)

	if snap.Progress.Level != 1 {
		t.Fatalf("level = %d, want 1 after restart", snap.Progress.Level)
	}
	if !snap.Progress.HasSolved(1) {
		t.Errorf("solved history lost on restart")
	}
	if snap.Session.State != domain.StateAwaitingMove || snap.Session.Puzzle.Tier != 1 {
		t.Errorf("restart did not load a tier-one puzzle: %+v", snap.Session)
	}
	if got := st.get("u1").FailedPuzzleID; got != 0 {
		t.Errorf("persisted failed puzzle id = %d, want cleared", got)
	}
	if !rec.recorded(domain.EventLevelRestart) {
		t.Errorf("ladder reset not recorded")
	}
}

func TestControllerRestartIgnoredWhilePlaying(t *testing.T) {
	c, _, _ := newTestController(t, testDataset, nil, nil)

	snap := c.Restart(context.Background())
	if snap.Session.State != domain.StateAwaitingMove || snap.Progress.Level != 1 {
		t.Fatalf("restart while playing changed the session: %+v", snap)
	}
}

func TestControllerAllSolved(t *testing.T) {
	seed := domain.NewUserProgress()
	seed.Level = 4 // tier two, absent from this dataset
	seed.SolvedIDs = []int{1}
	c, _, _ := newTestController(t, tierOneOnlyDataset, &seed, nil)

	snap := c.Snapshot()
	if snap.Session.State != domain.StateAllSolved {
		t.Fatalf("state = %s, want all_solved", snap.Session.State)
	}
	if result, _ := c.SubmitMove(context.Background(), "e2", "e4"); result != MoveIgnored {
		t.Fatalf("move in all_solved = %s, want ignored", result)
	}
}

func TestManagerOpenAndGet(t *testing.T) {
	cat, err := catalog.FromJSON([]byte(testDataset))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := newFakeStore()
	m := NewManager(func(userKey string) *Controller {
		return NewController(userKey, cat, rules.NewEngine(), st, nil, nil, time.Millisecond)
	})

	ctx := context.Background()
	c1, err := m.Open(ctx, "u1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c2, err := m.Open(ctx, "u1")
	if err != nil || c1 != c2 {
		t.Fatalf("second Open returned a different controller")
	}

	if _, err := m.Get("u2"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("Get unknown user: err = %v, want ErrSessionNotFound", err)
	}
	if got, err := m.Get("u1"); err != nil || got != c1 {
		t.Fatalf("Get returned %v, %v", got, err)
	}
}
