package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAvailableMovesFieldPresence(t *testing.T) {
	// A pinned or empty square still carries the array, so clients can
	// tell "no moves" from a missing field.
	raw, err := json.Marshal(ServerMessage{Type: TypeAvailableMoves, AvailableMoves: []string{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"available_moves":[]`) {
		t.Fatalf("empty move list dropped: %s", raw)
	}

	// Other event types do not leak the field.
	raw, err = json.Marshal(ServerMessage{Type: TypeMoveMade, FEN: "8/8/8/8/8/8/8/8 w - - 0 1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "available_moves") {
		t.Fatalf("unset move list emitted: %s", raw)
	}
}
