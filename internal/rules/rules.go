// Package rules provides the move-legality oracle consumed by the puzzle
// session. The session core depends only on the Oracle interface; Engine is
// the built-in implementation.
package rules

import "github.com/knightmint/knightmint/internal/domain"

// Color identifies the side to move, using FEN notation.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Oracle answers move-legality questions against a FEN-encoded position.
// Implementations must be stateless: every call gets the full position.
type Oracle interface {
	// ApplyMove validates the move and returns the resulting position.
	// Promotion is a piece letter ('q', 'r', 'b', 'n') or 0 for the
	// default queen promotion.
	ApplyMove(fen string, from, to domain.Square, promotion byte) (string, error)

	// LegalDestinations returns every square the piece on from may move to.
	LegalDestinations(fen string, from domain.Square) ([]domain.Square, error)

	// CurrentTurn returns the side to move.
	CurrentTurn(fen string) (Color, error)
}
