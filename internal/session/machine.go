// Package session implements the puzzle session state machine. The decision
// logic is a pure transition function from (snapshot, event) to (snapshot,
// effects); the Controller executes the effects (persistence, timers,
// payment callbacks) around it.
package session

import (
	"github.com/knightmint/knightmint/internal/domain"
)

// validTransitions defines the legal session state transitions.
// Each key is a source state, and the value is the set of valid targets.
var validTransitions = map[domain.SessionState]map[domain.SessionState]bool{
	domain.StateLoading: {
		domain.StateAwaitingMove: true,
		domain.StateLost:         true, // resuming a persisted failure
		domain.StateAllSolved:    true,
	},
	domain.StateAwaitingMove: {
		domain.StateSolved:         true,
		domain.StateLost:           true,
		domain.StateAnswerRevealed: true,
	},
	domain.StateLost: {
		domain.StateAwaitingMove: true, // revive
		domain.StateLoading:      true, // restart
	},
	domain.StateAnswerRevealed: {
		domain.StateLoading: true, // proceed to next puzzle
	},
	domain.StateSolved: {
		domain.StateLoading: true, // display delay elapsed
	},
}

// IsValidTransition checks if a session state transition is legal.
func IsValidTransition(from, to domain.SessionState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Session is the ephemeral per-puzzle state. It is rebuilt on every puzzle
// load and never persisted.
type Session struct {
	State      domain.SessionState
	Puzzle     domain.Puzzle
	FEN        string
	Prompt     string
	MoveIndex  int // player half-moves already played
	HintSquare domain.Square
	HintUsed   bool
	AnswerMove *domain.HalfMove

	// Generation increments on every puzzle load. Deferred effects (advance
	// timers, payment confirmations) carry the generation they were created
	// under and are dropped when it no longer matches.
	Generation uint64
}

// Snapshot pairs the ephemeral session with the durable progress so a
// transition can update both atomically in memory.
type Snapshot struct {
	Session  Session
	Progress domain.UserProgress
}

// Event is a classified input to the state machine. Move classification
// (correct / wrong-but-legal / illegal) happens in the Controller, which
// consults the rules oracle, so Step stays pure.
type Event interface{ isEvent() }

// EvLoaded delivers the puzzle selected for the current level.
type EvLoaded struct{ Puzzle domain.Puzzle }

// EvExhausted signals that the catalog has no puzzle for the level's tier.
type EvExhausted struct{}

// EvMoveCorrect is a legal move matching the solution's next player
// half-move. NewFEN is the oracle-confirmed post-move position.
type EvMoveCorrect struct{ NewFEN string }

// EvMoveIllegal is a move the oracle rejected. It never changes state.
type EvMoveIllegal struct{}

// EvMoveWrong is a legal move that does not match the solution.
type EvMoveWrong struct{}

// EvOpponentReplied delivers the scripted opponent half-move mid-line.
type EvOpponentReplied struct{ NewFEN string }

// EvReviveConfirmed applies a confirmed revive unlock.
type EvReviveConfirmed struct{}

// EvHintConfirmed applies a confirmed hint unlock.
type EvHintConfirmed struct{}

// EvAnswerConfirmed applies a confirmed answer unlock.
type EvAnswerConfirmed struct{}

// EvProceed is the explicit "proceed to next puzzle" action after an answer
// reveal. It performs the solve side effects without a played move.
type EvProceed struct{}

// EvRestart restarts the ladder without paying.
type EvRestart struct{}

// EvAdvanceElapsed fires when the post-solve display delay has passed.
type EvAdvanceElapsed struct{}

func (EvLoaded) isEvent()          {}
func (EvExhausted) isEvent()       {}
func (EvMoveCorrect) isEvent()     {}
func (EvMoveIllegal) isEvent()     {}
func (EvMoveWrong) isEvent()       {}
func (EvOpponentReplied) isEvent() {}
func (EvReviveConfirmed) isEvent() {}
func (EvHintConfirmed) isEvent()   {}
func (EvAnswerConfirmed) isEvent() {}
func (EvProceed) isEvent()         {}
func (EvRestart) isEvent()         {}
func (EvAdvanceElapsed) isEvent()  {}

// Effect is an instruction to the Controller's effect runner. Ordering
// matters: persistence effects always follow the in-memory transition they
// reflect.
type Effect interface{ isEffect() }

// EffPersist writes the snapshot's progress to the progress store.
type EffPersist struct{}

// EffRecord appends an event to the progress event log.
type EffRecord struct {
	Type     string
	PuzzleID int
}

// EffScheduleAdvance starts the display-delay timer toward the next level.
type EffScheduleAdvance struct{}

// EffScheduleReply starts the display-delay timer for the scripted opponent
// half-move.
type EffScheduleReply struct{ Reply domain.HalfMove }

// EffLoad selects and loads the next puzzle for the current level.
type EffLoad struct{}

func (EffPersist) isEffect()         {}
func (EffRecord) isEffect()          {}
func (EffScheduleAdvance) isEffect() {}
func (EffScheduleReply) isEffect()   {}
func (EffLoad) isEffect()            {}

// Message texts shown with the session snapshot.
const (
	msgCorrect  = "Correct! Well done."
	msgWrong    = "Wrong move, try again."
	msgOpponent = "Opponent moved. What is your next move?"
	msgAllDone  = "You have solved every puzzle. Congratulations!"
)

// Step is the pure transition function. Events that are not meaningful in
// the current state return the snapshot unchanged with no effects.
func Step(s Snapshot, ev Event) (Snapshot, []Effect) {
	switch e := ev.(type) {

	case EvLoaded:
		sess := Session{
			State:      domain.StateAwaitingMove,
			Puzzle:     e.Puzzle,
			FEN:        e.Puzzle.FEN,
			Prompt:     e.Puzzle.Prompt,
			Generation: s.Session.Generation + 1,
		}
		// A persisted failure on this exact puzzle resumes in the lost
		// state rather than silently granting a fresh attempt.
		if s.Progress.FailedPuzzleID == e.Puzzle.ID {
			sess.State = domain.StateLost
			sess.Prompt = msgWrong
		}
		s.Session = sess
		return s, nil

	case EvExhausted:
		s.Session = Session{
			State:      domain.StateAllSolved,
			Prompt:     msgAllDone,
			Generation: s.Session.Generation + 1,
		}
		return s, nil

	case EvMoveCorrect:
		if s.Session.State != domain.StateAwaitingMove {
			return s, nil
		}
		s.Session.FEN = e.NewFEN
		s.Session.MoveIndex++
		if s.Session.MoveIndex < s.Session.Puzzle.PlayerMoveCount() {
			reply, ok := s.Session.Puzzle.OpponentReplyAt(s.Session.MoveIndex - 1)
			if ok {
				s.Session.Prompt = msgCorrect
				return s, []Effect{EffScheduleReply{Reply: reply}}
			}
		}
		return solve(s)

	case EvMoveIllegal:
		return s, nil

	case EvMoveWrong:
		if s.Session.State != domain.StateAwaitingMove {
			return s, nil
		}
		s.Session.State = domain.StateLost
		s.Session.Prompt = msgWrong
		s.Progress.FailedPuzzleID = s.Session.Puzzle.ID
		return s, []Effect{
			EffPersist{},
			EffRecord{Type: domain.EventPuzzleFailed, PuzzleID: s.Session.Puzzle.ID},
		}

	case EvOpponentReplied:
		if s.Session.State != domain.StateAwaitingMove {
			return s, nil
		}
		s.Session.FEN = e.NewFEN
		s.Session.Prompt = msgOpponent
		return s, nil

	case EvReviveConfirmed:
		if s.Session.State != domain.StateLost {
			return s, nil
		}
		s.Session.State = domain.StateAwaitingMove
		s.Session.FEN = s.Session.Puzzle.FEN
		s.Session.Prompt = s.Session.Puzzle.Prompt
		s.Session.MoveIndex = 0
		s.Progress.FailedPuzzleID = 0
		return s, []Effect{
			EffPersist{},
			EffRecord{Type: domain.EventUnlockApplied, PuzzleID: s.Session.Puzzle.ID},
		}

	case EvHintConfirmed:
		if s.Session.State != domain.StateAwaitingMove || s.Session.HintUsed {
			return s, nil
		}
		next, ok := s.Session.Puzzle.PlayerMoveAt(s.Session.MoveIndex)
		if !ok {
			return s, nil
		}
		s.Session.HintSquare = next.From
		s.Session.HintUsed = true
		return s, []Effect{
			EffRecord{Type: domain.EventUnlockApplied, PuzzleID: s.Session.Puzzle.ID},
		}

	case EvAnswerConfirmed:
		if s.Session.State != domain.StateAwaitingMove {
			return s, nil
		}
		next, ok := s.Session.Puzzle.PlayerMoveAt(s.Session.MoveIndex)
		if !ok {
			return s, nil
		}
		s.Session.State = domain.StateAnswerRevealed
		s.Session.AnswerMove = &next
		return s, []Effect{
			EffRecord{Type: domain.EventUnlockApplied, PuzzleID: s.Session.Puzzle.ID},
		}

	case EvProceed:
		if s.Session.State != domain.StateAnswerRevealed {
			return s, nil
		}
		s.Session.State = domain.StateLoading
		snap, effects := solveEffects(s)
		return snap, append(effects, EffLoad{})

	case EvRestart:
		if s.Session.State != domain.StateLost {
			return s, nil
		}
		s.Session.State = domain.StateLoading
		s.Progress.FailedPuzzleID = 0
		effects := []Effect{EffPersist{}}
		if s.Progress.Level > 1 {
			s.Progress.Level = 1
			effects = append(effects, EffRecord{Type: domain.EventLevelRestart, PuzzleID: s.Session.Puzzle.ID})
		}
		return s, append(effects, EffLoad{})

	case EvAdvanceElapsed:
		if s.Session.State != domain.StateSolved {
			return s, nil
		}
		s.Session.State = domain.StateLoading
		return s, []Effect{EffLoad{}}
	}

	return s, nil
}

// solve applies the terminal solved transition with its side effects.
func solve(s Snapshot) (Snapshot, []Effect) {
	s.Session.State = domain.StateSolved
	s.Session.Prompt = msgCorrect
	snap, effects := solveEffects(s)
	return snap, append(effects, EffScheduleAdvance{})
}

// solveEffects holds the level/history bookkeeping shared by a played solve
// and the paid answer shortcut.
func solveEffects(s Snapshot) (Snapshot, []Effect) {
	s.Progress.Level++
	s.Progress.MarkSolved(s.Session.Puzzle.ID)
	s.Progress.FailedPuzzleID = 0
	return s, []Effect{
		EffPersist{},
		EffRecord{Type: domain.EventPuzzleSolved, PuzzleID: s.Session.Puzzle.ID},
	}
}
