package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knightmint/knightmint/internal/domain"
)

// position is the parsed form of a FEN string. Squares are indexed
// 0..63 with a1 = 0, b1 = 1, ..., h8 = 63.
type position struct {
	board    [64]byte // piece letters, upper case white, 0 = empty
	turn     Color
	castling string // subset of "KQkq", empty = no rights
	epTarget int    // en passant target square, -1 = none
	halfmove int
	fullmove int
}

// parseFEN parses the six FEN fields. Positions with fewer fields (some
// datasets truncate the move counters) get defaults for the missing ones.
func parseFEN(fen string) (*position, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 2 {
		return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("want at least 2 fields, got %d", len(fields)))
	}

	p := &position{epTarget: -1, halfmove: 0, fullmove: 1}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("want 8 ranks, got %d", len(ranks)))
	}
	for r := 0; r < 8; r++ {
		file := 0
		for _, ch := range ranks[r] {
			switch {
			case ch >= '1' && ch <= '8':
				file += int(ch - '0')
			case strings.ContainsRune("pnbrqkPNBRQK", ch):
				if file > 7 {
					return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("rank %d overflows", 8-r))
				}
				// FEN lists rank 8 first.
				p.board[(7-r)*8+file] = byte(ch)
				file++
			default:
				return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad piece char %q", ch))
			}
		}
		if file != 8 {
			return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("rank %d has %d files", 8-r, file))
		}
	}

	switch fields[1] {
	case "w":
		p.turn = White
	case "b":
		p.turn = Black
	default:
		return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad side to move %q", fields[1]))
	}

	if len(fields) > 2 && fields[2] != "-" {
		for _, ch := range fields[2] {
			if !strings.ContainsRune("KQkq", ch) {
				return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad castling field %q", fields[2]))
			}
		}
		p.castling = fields[2]
	}

	if len(fields) > 3 && fields[3] != "-" {
		idx, err := squareIndex(domain.Square(fields[3]))
		if err != nil {
			return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad en passant square %q", fields[3]))
		}
		p.epTarget = idx
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad halfmove clock %q", fields[4]))
		}
		p.halfmove = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return nil, domain.WrapAppError(domain.ErrBadFEN.Code, domain.ErrBadFEN.Message, fmt.Errorf("bad fullmove number %q", fields[5]))
		}
		p.fullmove = n
	}

	return p, nil
}

// fen serializes the position back into the six-field FEN form.
func (p *position) fen() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			pc := p.board[r*8+f]
			if pc == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(pc)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	castling := p.castling
	if castling == "" {
		castling = "-"
	}
	ep := "-"
	if p.epTarget >= 0 {
		ep = string(indexSquare(p.epTarget))
	}

	return fmt.Sprintf("%s %s %s %s %d %d", sb.String(), p.turn, castling, ep, p.halfmove, p.fullmove)
}

// squareIndex converts "e2" into the 0..63 board index.
func squareIndex(sq domain.Square) (int, error) {
	if len(sq) != 2 {
		return 0, domain.ErrBadSquare
	}
	file := int(sq[0] - 'a')
	rank := int(sq[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, domain.ErrBadSquare
	}
	return rank*8 + file, nil
}

// indexSquare converts a 0..63 board index back to algebraic form.
func indexSquare(idx int) domain.Square {
	return domain.Square([]byte{byte('a' + idx%8), byte('1' + idx/8)})
}

func isWhitePiece(pc byte) bool { return pc >= 'A' && pc <= 'Z' }

func pieceColor(pc byte) Color {
	if isWhitePiece(pc) {
		return White
	}
	return Black
}

// pieceType returns the lower-case piece letter regardless of color.
func pieceType(pc byte) byte {
	if isWhitePiece(pc) {
		return pc + ('a' - 'A')
	}
	return pc
}
