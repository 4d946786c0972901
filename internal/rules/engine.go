package rules

import (
	"github.com/knightmint/knightmint/internal/domain"
)

// Engine is the built-in Oracle implementation. It enforces piece movement
// geometry, path blocking, turn order, captures, castling, en passant,
// promotion, and never leaves the mover's own king in check.
type Engine struct{}

// NewEngine creates the built-in rules oracle.
func NewEngine() *Engine { return &Engine{} }

var (
	knightDeltas = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs     = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// CurrentTurn returns the side to move.
func (e *Engine) CurrentTurn(fen string) (Color, error) {
	p, err := parseFEN(fen)
	if err != nil {
		return "", err
	}
	return p.turn, nil
}

// LegalDestinations returns every square the piece on from may legally move
// to. Empty squares and opponent pieces yield an empty set, not an error.
func (e *Engine) LegalDestinations(fen string, from domain.Square) ([]domain.Square, error) {
	p, err := parseFEN(fen)
	if err != nil {
		return nil, err
	}
	fromIdx, err := squareIndex(from)
	if err != nil {
		return nil, err
	}
	pc := p.board[fromIdx]
	if pc == 0 || pieceColor(pc) != p.turn {
		return nil, nil
	}

	var out []domain.Square
	for _, toIdx := range pseudoDests(p, fromIdx) {
		if !leavesKingInCheck(p, fromIdx, toIdx, 0) {
			out = append(out, indexSquare(toIdx))
		}
	}
	return out, nil
}

// ApplyMove validates the move and returns the resulting position.
func (e *Engine) ApplyMove(fen string, from, to domain.Square, promotion byte) (string, error) {
	p, err := parseFEN(fen)
	if err != nil {
		return "", err
	}
	fromIdx, err := squareIndex(from)
	if err != nil {
		return "", err
	}
	toIdx, err := squareIndex(to)
	if err != nil {
		return "", err
	}

	pc := p.board[fromIdx]
	if pc == 0 {
		return "", domain.ErrEmptySquare
	}
	if pieceColor(pc) != p.turn {
		return "", domain.ErrWrongTurn
	}
	switch promotion {
	case 0, 'q', 'r', 'b', 'n':
	default:
		return "", domain.ErrIllegalMove
	}

	legal := false
	for _, d := range pseudoDests(p, fromIdx) {
		if d == toIdx {
			legal = true
			break
		}
	}
	if !legal || leavesKingInCheck(p, fromIdx, toIdx, promotion) {
		return "", domain.ErrIllegalMove
	}

	return makeMove(p, fromIdx, toIdx, promotion).fen(), nil
}

// pseudoDests returns the movement-geometry destinations for the piece on
// fromIdx, ignoring whether the move exposes the own king.
func pseudoDests(p *position, fromIdx int) []int {
	pc := p.board[fromIdx]
	color := pieceColor(pc)
	r, f := fromIdx/8, fromIdx%8

	var out []int
	add := func(rr, ff int) {
		out = append(out, rr*8+ff)
	}
	// addLanding appends the square if empty or enemy-occupied.
	addLanding := func(rr, ff int) {
		t := p.board[rr*8+ff]
		if t == 0 || pieceColor(t) != color {
			add(rr, ff)
		}
	}
	onBoard := func(rr, ff int) bool {
		return rr >= 0 && rr < 8 && ff >= 0 && ff < 8
	}

	switch pieceType(pc) {
	case 'p':
		dir := 1
		startRank := 1
		if color == Black {
			dir = -1
			startRank = 6
		}
		if onBoard(r+dir, f) && p.board[(r+dir)*8+f] == 0 {
			add(r+dir, f)
			if r == startRank && p.board[(r+2*dir)*8+f] == 0 {
				add(r+2*dir, f)
			}
		}
		for _, df := range []int{-1, 1} {
			rr, ff := r+dir, f+df
			if !onBoard(rr, ff) {
				continue
			}
			idx := rr*8 + ff
			t := p.board[idx]
			if (t != 0 && pieceColor(t) != color) || idx == p.epTarget {
				add(rr, ff)
			}
		}
	case 'n':
		for _, d := range knightDeltas {
			if onBoard(r+d[0], f+d[1]) {
				addLanding(r+d[0], f+d[1])
			}
		}
	case 'k':
		for _, d := range kingDeltas {
			if onBoard(r+d[0], f+d[1]) {
				addLanding(r+d[0], f+d[1])
			}
		}
		out = append(out, castleDests(p, color, r, f)...)
	case 'b':
		out = append(out, slideDests(p, color, r, f, bishopDirs[:])...)
	case 'r':
		out = append(out, slideDests(p, color, r, f, rookDirs[:])...)
	case 'q':
		out = append(out, slideDests(p, color, r, f, rookDirs[:])...)
		out = append(out, slideDests(p, color, r, f, bishopDirs[:])...)
	}
	return out
}

// slideDests walks each direction until blocked.
func slideDests(p *position, color Color, r, f int, dirs [][2]int) []int {
	var out []int
	for _, d := range dirs {
		rr, ff := r+d[0], f+d[1]
		for rr >= 0 && rr < 8 && ff >= 0 && ff < 8 {
			idx := rr*8 + ff
			t := p.board[idx]
			if t == 0 {
				out = append(out, idx)
			} else {
				if pieceColor(t) != color {
					out = append(out, idx)
				}
				break
			}
			rr, ff = rr+d[0], ff+d[1]
		}
	}
	return out
}

// castleDests returns the two-square king moves still permitted by the
// castling rights. The path must be empty and the king may not castle out
// of or through an attacked square.
func castleDests(p *position, color Color, r, f int) []int {
	homeRank := 0
	kingSide, queenSide := "K", "Q"
	if color == Black {
		homeRank = 7
		kingSide, queenSide = "k", "q"
	}
	if r != homeRank || f != 4 {
		return nil
	}
	if isAttacked(p, r*8+4, color.Opponent()) {
		return nil
	}

	var out []int
	if hasRight(p.castling, kingSide) &&
		p.board[r*8+5] == 0 && p.board[r*8+6] == 0 &&
		!isAttacked(p, r*8+5, color.Opponent()) {
		out = append(out, r*8+6)
	}
	if hasRight(p.castling, queenSide) &&
		p.board[r*8+3] == 0 && p.board[r*8+2] == 0 && p.board[r*8+1] == 0 &&
		!isAttacked(p, r*8+3, color.Opponent()) {
		out = append(out, r*8+2)
	}
	return out
}

func hasRight(castling, right string) bool {
	for i := 0; i < len(castling); i++ {
		if string(castling[i]) == right {
			return true
		}
	}
	return false
}

// isAttacked reports whether the square is attacked by any piece of color by.
func isAttacked(p *position, idx int, by Color) bool {
	r, f := idx/8, idx%8
	onBoard := func(rr, ff int) bool {
		return rr >= 0 && rr < 8 && ff >= 0 && ff < 8
	}
	isPiece := func(rr, ff int, typ byte) bool {
		pc := p.board[rr*8+ff]
		return pc != 0 && pieceColor(pc) == by && pieceType(pc) == typ
	}

	// Pawns attack diagonally toward their movement direction.
	pawnDir := 1
	if by == Black {
		pawnDir = -1
	}
	for _, df := range []int{-1, 1} {
		if onBoard(r-pawnDir, f+df) && isPiece(r-pawnDir, f+df, 'p') {
			return true
		}
	}

	for _, d := range knightDeltas {
		if onBoard(r+d[0], f+d[1]) && isPiece(r+d[0], f+d[1], 'n') {
			return true
		}
	}
	for _, d := range kingDeltas {
		if onBoard(r+d[0], f+d[1]) && isPiece(r+d[0], f+d[1], 'k') {
			return true
		}
	}

	slider := func(dirs [4][2]int, typA, typB byte) bool {
		for _, d := range dirs {
			rr, ff := r+d[0], f+d[1]
			for onBoard(rr, ff) {
				pc := p.board[rr*8+ff]
				if pc != 0 {
					if pieceColor(pc) == by && (pieceType(pc) == typA || pieceType(pc) == typB) {
						return true
					}
					break
				}
				rr, ff = rr+d[0], ff+d[1]
			}
		}
		return false
	}
	return slider(rookDirs, 'r', 'q') || slider(bishopDirs, 'b', 'q')
}

// leavesKingInCheck applies the move to a copy and tests the mover's king.
func leavesKingInCheck(p *position, fromIdx, toIdx int, promotion byte) bool {
	mover := pieceColor(p.board[fromIdx])
	np := makeMove(p, fromIdx, toIdx, promotion)

	kingIdx := -1
	want := byte('K')
	if mover == Black {
		want = 'k'
	}
	for i := 0; i < 64; i++ {
		if np.board[i] == want {
			kingIdx = i
			break
		}
	}
	if kingIdx < 0 {
		// Puzzle datasets may omit a king; nothing to expose then.
		return false
	}
	return isAttacked(np, kingIdx, mover.Opponent())
}

// makeMove applies an already-validated move to a copy of the position,
// handling en passant, castling rook relocation, promotion, rights and
// clock bookkeeping.
func makeMove(p *position, fromIdx, toIdx int, promotion byte) *position {
	np := *p
	pc := np.board[fromIdx]
	color := pieceColor(pc)
	typ := pieceType(pc)
	capture := np.board[toIdx] != 0

	// En passant removes the pawn behind the target square.
	if typ == 'p' && toIdx == np.epTarget && np.board[toIdx] == 0 {
		dir := 8
		if color == Black {
			dir = -8
		}
		np.board[toIdx-dir] = 0
		capture = true
	}

	np.board[toIdx] = pc
	np.board[fromIdx] = 0

	// Castling also moves the rook.
	if typ == 'k' && toIdx-fromIdx == 2 {
		np.board[toIdx-1] = np.board[fromIdx+3]
		np.board[fromIdx+3] = 0
	}
	if typ == 'k' && fromIdx-toIdx == 2 {
		np.board[toIdx+1] = np.board[fromIdx-4]
		np.board[fromIdx-4] = 0
	}

	// Promotion defaults to a queen.
	if typ == 'p' && (toIdx/8 == 7 || toIdx/8 == 0) {
		promo := promotion
		if promo == 0 {
			promo = 'q'
		}
		if color == White {
			promo -= 'a' - 'A'
		}
		np.board[toIdx] = promo
	}

	np.castling = updateRights(np.castling, color, typ, fromIdx, toIdx)

	np.epTarget = -1
	if typ == 'p' && (toIdx-fromIdx == 16 || fromIdx-toIdx == 16) {
		np.epTarget = (fromIdx + toIdx) / 2
	}

	if typ == 'p' || capture {
		np.halfmove = 0
	} else {
		np.halfmove++
	}
	if color == Black {
		np.fullmove++
	}
	np.turn = color.Opponent()
	return &np
}

// updateRights drops castling rights when a king or corner rook moves, or a
// corner rook is captured.
func updateRights(castling string, mover Color, typ byte, fromIdx, toIdx int) string {
	drop := func(s, right string) string {
		out := ""
		for i := 0; i < len(s); i++ {
			if string(s[i]) != right {
				out += string(s[i])
			}
		}
		return out
	}

	if typ == 'k' {
		if mover == White {
			castling = drop(drop(castling, "K"), "Q")
		} else {
			castling = drop(drop(castling, "k"), "q")
		}
	}
	for _, idx := range []int{fromIdx, toIdx} {
		switch idx {
		case 0:
			castling = drop(castling, "Q")
		case 7:
			castling = drop(castling, "K")
		case 56:
			castling = drop(castling, "q")
		case 63:
			castling = drop(castling, "k")
		}
	}
	return castling
}
