package engine

import (
	chesslib "github.com/corentings/chess/v2"
)

// WinnableBy reports whether the given side retains enough material to
// deliver checkmate. Used when the opponent's flag falls: a side that
// cannot mate (lone king, king and one minor piece) gets a draw instead of
// a win on time.
func WinnableBy(p Position, c Color) bool {
	if p.game == nil {
		return false
	}
	want := chesslib.White
	if c == Black {
		want = chesslib.Black
	}
	var pawns, knights, bishops, majors int
	for _, piece := range p.game.Position().Board().SquareMap() {
		if piece.Color() != want {
			continue
		}
		switch piece.Type() {
		case chesslib.Pawn:
			pawns++
		case chesslib.Knight:
			knights++
		case chesslib.Bishop:
			bishops++
		case chesslib.Rook, chesslib.Queen:
			majors++
		}
	}
	if pawns > 0 || majors > 0 {
		return true
	}
	// Two minors can mate (KBN, and KNN against a helpful defense); a
	// single minor never can.
	return knights+bishops >= 2
}
