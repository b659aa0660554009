package engine

import (
	"errors"
	"sort"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// ErrIllegalMove is returned when a requested move is not legal in the
// given position.
var ErrIllegalMove = errors.New("illegal move")

// Game status tokens shared with the wire protocol.
const (
	StatusInProgress = "in_progress"
	StatusCheck      = "check"
	StatusWhiteWins  = "white_wins"
	StatusBlackWins  = "black_wins"
	StatusStalemate  = "stalemate"
	StatusDraw       = "draw"
)

// Terminal reasons reported alongside a finished status.
const (
	ReasonCheckmate = "checkmate"
	ReasonStalemate = "stalemate"
	ReasonDraw      = "draw"
)

// MoveOutcome is the result of applying a legal move.
type MoveOutcome struct {
	Position Position // position after the move
	SAN      string   // algebraic form of the applied move
	Status   string   // in_progress, check, or a terminal status
	Over     bool     // a terminal condition was reached
	Reason   string   // checkmate, stalemate, or draw when Over
}

// LegalDestinations lists the destination squares of every legal move from
// the given square, sorted, without duplicates (promotions collapse to one
// destination).
func LegalDestinations(p Position, from string) []string {
	if p.game == nil {
		return nil
	}
	from = strings.ToLower(strings.TrimSpace(from))
	seen := map[string]struct{}{}
	for _, mv := range p.game.ValidMoves() {
		if mv.S1().String() != from {
			continue
		}
		seen[mv.S2().String()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sq := range seen {
		out = append(out, sq)
	}
	sort.Strings(out)
	return out
}

// ApplyMove validates and applies from→to (with optional promotion piece
// letter) and reports the resulting position plus any terminal condition.
// The input position is not modified.
func ApplyMove(p Position, from, to, promotion string) (MoveOutcome, error) {
	if p.game == nil {
		return MoveOutcome{}, ErrIllegalMove
	}
	uci, err := uciString(from, to, promotion)
	if err != nil {
		return MoveOutcome{}, err
	}

	game := p.game.Clone()
	pos := game.Position()
	mv, err := chesslib.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return MoveOutcome{}, ErrIllegalMove
	}
	if !isLegal(game, uci) {
		return MoveOutcome{}, ErrIllegalMove
	}
	san := chesslib.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.Move(mv, nil); err != nil {
		return MoveOutcome{}, ErrIllegalMove
	}

	out := MoveOutcome{
		Position: Position{game: game},
		SAN:      san,
		Status:   StatusInProgress,
	}
	switch game.Outcome() {
	case chesslib.WhiteWon:
		out.Over, out.Status, out.Reason = true, StatusWhiteWins, ReasonCheckmate
	case chesslib.BlackWon:
		out.Over, out.Status, out.Reason = true, StatusBlackWins, ReasonCheckmate
	case chesslib.Draw:
		out.Over = true
		if game.Method() == chesslib.Stalemate {
			out.Status, out.Reason = StatusStalemate, ReasonStalemate
		} else {
			out.Status, out.Reason = StatusDraw, ReasonDraw
		}
	default:
		if strings.HasSuffix(san, "+") {
			out.Status = StatusCheck
		}
	}
	return out, nil
}

// isLegal reports whether the UCI move string names a legal move.
func isLegal(game *chesslib.Game, uci string) bool {
	for _, mv := range game.ValidMoves() {
		if mv.String() == uci {
			return true
		}
	}
	return false
}

// uciString assembles a UCI move token from protocol fields. Squares must
// be two characters (file a-h, rank 1-8); the promotion letter is optional.
func uciString(from, to, promotion string) (string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if !validSquare(from) || !validSquare(to) {
		return "", ErrIllegalMove
	}
	promo, err := promoLetter(promotion)
	if err != nil {
		return "", err
	}
	return from + to + promo, nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// promoLetter normalizes a promotion piece name ("q", "queen", ...) to its
// UCI letter. Empty input means no promotion.
func promoLetter(promotion string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(promotion)) {
	case "":
		return "", nil
	case "q", "queen":
		return "q", nil
	case "r", "rook":
		return "r", nil
	case "b", "bishop":
		return "b", nil
	case "n", "knight":
		return "n", nil
	default:
		return "", ErrIllegalMove
	}
}
