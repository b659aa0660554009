// Package engine is the boundary around the chess rules library. It exposes
// immutable positions, FEN encode/decode, legal-move queries, and move
// application with terminal detection. No other package imports the rules
// library directly.
package engine

import (
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Position is an immutable snapshot of a game: piece placement, side to
// move, castling rights, en-passant target, and move counters. Operations
// that change the position return a new value.
type Position struct {
	game *chesslib.Game
}

// Start returns the standard initial position.
func Start() Position {
	return Position{game: chesslib.NewGame()}
}

// Decode parses a FEN string into a Position. Malformed piece placement,
// side-to-move token, or counters yield an error.
func Decode(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return Position{}, fmt.Errorf("decode fen: empty input")
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("decode fen %q: %w", fen, err)
	}
	return Position{game: chesslib.NewGame(option)}, nil
}

// FEN serializes the position. Decode(p.FEN()) reproduces p for every
// reachable position.
func (p Position) FEN() string {
	if p.game == nil {
		return ""
	}
	return p.game.FEN()
}

// Turn reports the side to move.
func (p Position) Turn() Color {
	if p.game == nil {
		return White
	}
	if p.game.Position().Turn() == chesslib.White {
		return White
	}
	return Black
}

// Zero reports whether p is the uninitialized zero value.
func (p Position) Zero() bool { return p.game == nil }
