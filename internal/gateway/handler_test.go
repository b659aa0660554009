package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/park285/chess-live-server/internal/dispatch"
	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/presets"
	"github.com/park285/chess-live-server/internal/registry"
	"github.com/park285/chess-live-server/internal/room"
	"github.com/park285/chess-live-server/pkg/wire"
)

type testEnv struct {
	reg  *registry.Registry
	disp *dispatch.Dispatcher
	fc   *clockwork.FakeClock
	cat  *presets.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := presets.Load("")
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	fc := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return &testEnv{
		reg:  registry.New(fc),
		disp: dispatch.New(),
		fc:   fc,
		cat:  cat,
	}
}

// newSession builds a handler without a live connection; route and Send
// operate purely on the outbound channel.
func (e *testEnv) newSession() *Handler {
	defaults := room.Settings{Initial: 10 * time.Minute, Increment: 5 * time.Second}
	return NewHandler(nil, e.reg, e.disp, nil, e.cat, defaults)
}

// drain pops every queued outbound frame.
func drain(h *Handler) []wire.ServerMessage {
	var out []wire.ServerMessage
	for {
		select {
		case msg := <-h.out:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func next(t *testing.T, h *Handler) wire.ServerMessage {
	t.Helper()
	select {
	case msg := <-h.out:
		return msg
	default:
		t.Fatalf("no outbound frame queued")
		return wire.ServerMessage{}
	}
}

func TestCreateAssignsWhite(t *testing.T) {
	env := newTestEnv(t)
	h := env.newSession()

	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})

	msg := next(t, h)
	if msg.Type != wire.TypeGameCreated {
		t.Fatalf("type = %q", msg.Type)
	}
	if msg.Color != string(engine.White) {
		t.Fatalf("color = %q", msg.Color)
	}
	if msg.GameID == "" || msg.GameStatus != string(room.StatusWaiting) {
		t.Fatalf("msg = %+v", msg)
	}
	if *msg.WhiteTimeMs != 600_000 || *msg.IncrementMs != 5_000 {
		t.Fatalf("times = %d/%d", *msg.WhiteTimeMs, *msg.IncrementMs)
	}
	if env.reg.Len() != 1 {
		t.Fatalf("rooms = %d", env.reg.Len())
	}
}

func TestCreateWithPresetAndOverrides(t *testing.T) {
	env := newTestEnv(t)

	h := env.newSession()
	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate, Preset: "blitz"})
	msg := next(t, h)
	if *msg.WhiteTimeMs != 300_000 || *msg.IncrementMs != 3_000 {
		t.Fatalf("blitz times = %d/%d", *msg.WhiteTimeMs, *msg.IncrementMs)
	}

	h2 := env.newSession()
	mins, inc := 3, 2
	h2.route(context.Background(), wire.ClientMessage{
		Action:           wire.ActionCreate,
		StartTimeMinutes: &mins,
		IncrementSeconds: &inc,
	})
	msg = next(t, h2)
	if *msg.WhiteTimeMs != 180_000 || *msg.IncrementMs != 2_000 {
		t.Fatalf("custom times = %d/%d", *msg.WhiteTimeMs, *msg.IncrementMs)
	}

	h3 := env.newSession()
	h3.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate, Preset: "hyper"})
	if msg := next(t, h3); msg.Type != wire.TypeError {
		t.Fatalf("unknown preset reply = %+v", msg)
	}

	h4 := env.newSession()
	bad := -1
	h4.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate, StartTimeMinutes: &bad})
	if msg := next(t, h4); msg.Type != wire.TypeError {
		t.Fatalf("bad minutes reply = %+v", msg)
	}
}

// pair creates a game with one session and joins a second one, returning
// both handlers with their queues drained.
func pair(t *testing.T, env *testEnv) (white, black *Handler, gameID string) {
	t.Helper()
	white = env.newSession()
	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})
	created := next(t, white)
	gameID = created.GameID

	black = env.newSession()
	black.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: gameID})
	joined := next(t, black)
	if joined.Type != wire.TypeJoined || joined.Color != string(engine.Black) {
		t.Fatalf("join reply = %+v", joined)
	}
	if joined.GameStatus != engine.StatusInProgress {
		t.Fatalf("status after join = %q", joined.GameStatus)
	}

	// Pairing broadcast reaches both sessions.
	wMsgs, bMsgs := drain(white), drain(black)
	if len(wMsgs) != 1 || wMsgs[0].Type != wire.TypePlayerJoined {
		t.Fatalf("white pairing events = %+v", wMsgs)
	}
	if len(bMsgs) != 1 || bMsgs[0].Type != wire.TypePlayerJoined {
		t.Fatalf("black pairing events = %+v", bMsgs)
	}
	return white, black, gameID
}

func TestJoinErrors(t *testing.T) {
	env := newTestEnv(t)

	h := env.newSession()
	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin})
	if msg := next(t, h); msg.Type != wire.TypeError || msg.Error != "game_id is required" {
		t.Fatalf("reply = %+v", msg)
	}

	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: "ghost"})
	if msg := next(t, h); msg.Type != wire.TypeError || msg.Error != "game not found" {
		t.Fatalf("reply = %+v", msg)
	}

	// A full room rejects a third session.
	_, _, gameID := pair(t, env)
	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: gameID})
	if msg := next(t, h); msg.Type != wire.TypeError || msg.Error != "game is full" {
		t.Fatalf("reply = %+v", msg)
	}
}

func TestMoveFlow(t *testing.T) {
	env := newTestEnv(t)
	white, black, gameID := pair(t, env)

	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionGetMoves, MoveFrom: "e2"})
	moves := next(t, white)
	if moves.Type != wire.TypeAvailableMoves || len(moves.AvailableMoves) != 2 {
		t.Fatalf("moves reply = %+v", moves)
	}

	env.fc.Advance(2 * time.Second)
	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionMove, MoveFrom: "e2", MoveTo: "e4"})

	wMsgs, bMsgs := drain(white), drain(black)
	if len(wMsgs) != 1 || wMsgs[0].Type != wire.TypeMoveMade {
		t.Fatalf("white events = %+v", wMsgs)
	}
	if len(bMsgs) != 1 || bMsgs[0].Type != wire.TypeMoveMade {
		t.Fatalf("black events = %+v", bMsgs)
	}
	if bMsgs[0].GameID != gameID || bMsgs[0].ActiveColor != string(engine.Black) {
		t.Fatalf("move event = %+v", bMsgs[0])
	}

	// Illegal move errors reach only the mover.
	black.route(context.Background(), wire.ClientMessage{Action: wire.ActionMove, MoveFrom: "e7", MoveTo: "e3"})
	if msg := next(t, black); msg.Type != wire.TypeError {
		t.Fatalf("illegal move reply = %+v", msg)
	}
	if msgs := drain(white); len(msgs) != 0 {
		t.Fatalf("error leaked to opponent: %+v", msgs)
	}
}

func TestResignBroadcastsGameOver(t *testing.T) {
	env := newTestEnv(t)
	white, black, _ := pair(t, env)

	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionResign})

	for name, h := range map[string]*Handler{"white": white, "black": black} {
		msgs := drain(h)
		if len(msgs) != 1 || msgs[0].Type != wire.TypeGameOver {
			t.Fatalf("%s events = %+v", name, msgs)
		}
		if msgs[0].Winner != string(engine.Black) || msgs[0].Reason != string(room.ReasonResign) {
			t.Fatalf("%s game over = %+v", name, msgs[0])
		}
	}
}

func TestTimeSyncReply(t *testing.T) {
	env := newTestEnv(t)
	white, _, _ := pair(t, env)

	env.fc.Advance(3 * time.Second)
	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionTimeSync})
	msg := next(t, white)
	if msg.Type != wire.TypeTimeUpdate {
		t.Fatalf("type = %q", msg.Type)
	}
	if *msg.WhiteTimeMs != 597_000 {
		t.Fatalf("white ms = %d", *msg.WhiteTimeMs)
	}
}

func TestActionsOutsideGame(t *testing.T) {
	env := newTestEnv(t)
	h := env.newSession()

	for _, action := range []string{wire.ActionMove, wire.ActionResign, wire.ActionGetMoves, wire.ActionTimeSync} {
		h.route(context.Background(), wire.ClientMessage{Action: action, MoveFrom: "e2", MoveTo: "e4"})
		if msg := next(t, h); msg.Type != wire.TypeError || msg.Error != "not in a game" {
			t.Fatalf("%s reply = %+v", action, msg)
		}
	}

	h.route(context.Background(), wire.ClientMessage{Action: "dance"})
	if msg := next(t, h); msg.Type != wire.TypeError {
		t.Fatalf("unknown action reply = %+v", msg)
	}
}

func TestDisconnectForfeitsAndCleansUp(t *testing.T) {
	env := newTestEnv(t)
	white, black, _ := pair(t, env)

	white.leaveRoom()

	msgs := drain(black)
	if len(msgs) != 1 || msgs[0].Type != wire.TypeGameOver {
		t.Fatalf("black events = %+v", msgs)
	}
	if msgs[0].Winner != string(engine.Black) || msgs[0].Reason != string(room.ReasonAbandoned) {
		t.Fatalf("forfeit = %+v", msgs[0])
	}
	// The departed session no longer receives room events.
	if msgs := drain(white); len(msgs) != 0 {
		t.Fatalf("white still receiving: %+v", msgs)
	}
	if env.reg.Len() != 1 {
		t.Fatalf("room removed while black still bound")
	}

	black.leaveRoom()
	if env.reg.Len() != 0 {
		t.Fatalf("empty room not removed")
	}
}

func TestWaitingCreatorLeavingRemovesRoom(t *testing.T) {
	env := newTestEnv(t)
	h := env.newSession()
	h.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})
	drain(h)

	h.leaveRoom()
	if env.reg.Len() != 0 {
		t.Fatalf("rooms = %d", env.reg.Len())
	}
	// Leaving twice is a no-op.
	h.leaveRoom()
}

func TestJoinSwitchesRooms(t *testing.T) {
	env := newTestEnv(t)

	creator := env.newSession()
	creator.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})
	first := next(t, creator).GameID

	other := env.newSession()
	other.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})
	second := next(t, other).GameID

	// The creator abandons its waiting room by joining the other game.
	creator.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: second})
	if msg := next(t, creator); msg.Type != wire.TypeJoined || msg.Color != string(engine.Black) {
		t.Fatalf("join reply = %+v", msg)
	}
	if _, err := env.reg.Get(first); err == nil {
		t.Fatalf("abandoned waiting room survived")
	}
}

func TestJoinOwnGameKeepsSlot(t *testing.T) {
	env := newTestEnv(t)

	creator := env.newSession()
	creator.route(context.Background(), wire.ClientMessage{Action: wire.ActionCreate})
	gameID := next(t, creator).GameID

	// Joining the game it created rebinds the same slot instead of
	// taking the opponent's.
	creator.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: gameID})
	msg := next(t, creator)
	if msg.Type != wire.TypeJoined || msg.Color != string(engine.White) {
		t.Fatalf("self-join reply = %+v", msg)
	}
	if msg.GameStatus != string(room.StatusWaiting) {
		t.Fatalf("status = %q", msg.GameStatus)
	}

	other := env.newSession()
	other.route(context.Background(), wire.ClientMessage{Action: wire.ActionJoin, GameID: gameID})
	if msg := next(t, other); msg.Type != wire.TypeJoined || msg.Color != string(engine.Black) {
		t.Fatalf("opponent join reply = %+v", msg)
	}
	drain(creator)
	drain(other)

	// Turn validation stays deterministic for the creator afterwards.
	creator.route(context.Background(), wire.ClientMessage{Action: wire.ActionMove, MoveFrom: "e2", MoveTo: "e4"})
	if msgs := drain(creator); len(msgs) != 1 || msgs[0].Type != wire.TypeMoveMade {
		t.Fatalf("move events = %+v", msgs)
	}
}

func TestGetMovesEmptySquareSendsEmptyList(t *testing.T) {
	env := newTestEnv(t)
	white, _, _ := pair(t, env)

	// An empty square yields an empty list, not a missing field.
	white.route(context.Background(), wire.ClientMessage{Action: wire.ActionGetMoves, MoveFrom: "e3"})
	msg := next(t, white)
	if msg.Type != wire.TypeAvailableMoves {
		t.Fatalf("type = %q", msg.Type)
	}
	if msg.AvailableMoves == nil || len(msg.AvailableMoves) != 0 {
		t.Fatalf("moves = %#v", msg.AvailableMoves)
	}
}
