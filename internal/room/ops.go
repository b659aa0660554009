package room

import (
	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/pkg/wire"
)

// Domain errors. Each is reported to the originating session only and never
// affects the opponent's connection.
var (
	ErrRoomFull      = staticErr("game is full")
	ErrNotInProgress = staticErr("game is not in progress")
	ErrNotYourTurn   = staticErr("it's not your turn")
	ErrNotBound      = staticErr("you are not part of this game")
	ErrGameOver      = staticErr("game has already ended")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Result carries the events an operation produced: messages for every bound
// session, and an optional archive summary when the operation ended the
// game. Ordering within Broadcast is the delivery order.
type Result struct {
	Broadcast []wire.ServerMessage
	Terminal  *Summary
}

// BindResult reports a successful slot binding.
type BindResult struct {
	Color    engine.Color
	Snapshot Snapshot
	Started  bool // this bind completed the pairing and started the clock
	Result
}

// Bind assigns the joining session to the first open color (White, then
// Black). Binding the second player transitions the room to in_progress and
// starts White's clock. Fails with ErrRoomFull when both slots are taken
// and ErrGameOver when the game already finished.
func (r *Room) Bind(sessionID string) (BindResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusFinished {
		return BindResult{}, ErrGameOver
	}
	// A session already holding a slot rebinds to it; one session never
	// occupies both colors.
	if color, ok := r.colorOfLocked(sessionID); ok {
		return BindResult{Color: color, Snapshot: r.snapshotLocked()}, nil
	}
	var color engine.Color
	switch {
	case r.slots[engine.White] == "":
		color = engine.White
	case r.slots[engine.Black] == "":
		color = engine.Black
	default:
		return BindResult{}, ErrRoomFull
	}
	r.slots[color] = sessionID

	res := BindResult{Color: color}
	if r.slots[engine.White] != "" && r.slots[engine.Black] != "" {
		r.status = StatusInProgress
		r.timer.Start(engine.White, r.wc.Now())
		res.Started = true
	}
	res.Snapshot = r.snapshotLocked()
	obslog.L().Info("room_bind",
		zap.String("room_id", r.id),
		zap.String("session_id", sessionID),
		zap.String("color", string(color)),
		zap.Bool("started", res.Started),
	)

	if res.Started {
		snap := res.Snapshot
		res.Broadcast = append(res.Broadcast, wire.ServerMessage{
			Type:        wire.TypePlayerJoined,
			GameID:      r.id,
			Color:       string(color),
			FEN:         snap.FEN,
			GameStatus:  snap.GameStatus,
			WhiteTimeMs: wire.Ms(snap.WhiteMs),
			BlackTimeMs: wire.Ms(snap.BlackMs),
			IncrementMs: wire.Ms(snap.IncrementMs),
		})
	}
	return res, nil
}

// LegalMoves lists the legal destination squares from the given square for
// the session's side. Only the side to move may ask while the game runs.
func (r *Room) LegalMoves(sessionID, from string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	color, ok := r.colorOfLocked(sessionID)
	if !ok {
		return nil, ErrNotBound
	}
	if r.pos.Turn() != color {
		return nil, ErrNotYourTurn
	}
	return engine.LegalDestinations(r.pos, from), nil
}

// MakeMove validates and applies a move for the session's side, settles the
// mover's clock, and reports the events to broadcast. A flag that already
// fell ends the game as a timeout instead; the move is then not applied, so
// exactly one terminal outcome results.
func (r *Room) MakeMove(sessionID, from, to, promotion string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusFinished {
		return Result{}, ErrGameOver
	}
	if r.status != StatusInProgress {
		return Result{}, ErrNotInProgress
	}
	color, ok := r.colorOfLocked(sessionID)
	if !ok {
		return Result{}, ErrNotBound
	}
	if r.pos.Turn() != color {
		return Result{}, ErrNotYourTurn
	}

	now := r.wc.Now()
	if r.timer.FlagIfExpired(now) {
		return r.timeoutLocked(color), nil
	}

	outcome, err := engine.ApplyMove(r.pos, from, to, promotion)
	if err != nil {
		return Result{}, err
	}
	r.pos = outcome.Position
	r.inCheck = outcome.Status == engine.StatusCheck
	r.lastMove = &wire.LastMove{From: from, To: to}
	r.lastMoveAt = now
	whiteMs, blackMs := r.timer.ApplyMoveCompletion(color, now)

	var res Result
	if outcome.Over {
		winner := engine.Color("")
		switch outcome.Status {
		case engine.StatusWhiteWins:
			winner = engine.White
		case engine.StatusBlackWins:
			winner = engine.Black
		}
		res.Terminal = r.finishLocked(Reason(outcome.Reason), winner)
	}

	obslog.L().Info("room_move",
		zap.String("room_id", r.id),
		zap.String("color", string(color)),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("san", outcome.SAN),
		zap.String("status", r.gameStatusLocked()),
	)

	res.Broadcast = append(res.Broadcast, wire.ServerMessage{
		Type:        wire.TypeMoveMade,
		GameID:      r.id,
		FEN:         r.pos.FEN(),
		LastMove:    r.lastMove,
		GameStatus:  r.gameStatusLocked(),
		ActiveColor: string(r.pos.Turn()),
		WhiteTimeMs: wire.Ms(whiteMs),
		BlackTimeMs: wire.Ms(blackMs),
		IncrementMs: wire.Ms(r.timer.IncrementMs()),
	})
	if res.Terminal != nil {
		res.Broadcast = append(res.Broadcast, r.gameOverLocked())
	}
	return res, nil
}

// Resign ends the game in the opponent's favor. Valid only while the game
// is in progress.
func (r *Room) Resign(sessionID string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return Result{}, ErrNotInProgress
	}
	color, ok := r.colorOfLocked(sessionID)
	if !ok {
		return Result{}, ErrNotBound
	}
	sum := r.finishLocked(ReasonResign, color.Opponent())
	return Result{Broadcast: []wire.ServerMessage{r.gameOverLocked()}, Terminal: sum}, nil
}

// Unbind releases a session's slot on disconnect. While waiting the room
// reverts to awaiting a new opponent; mid-game the remaining player wins by
// forfeit immediately. Empty reports that no session remains bound.
func (r *Room) Unbind(sessionID string) (res Result, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	color, ok := r.colorOfLocked(sessionID)
	if !ok {
		return Result{}, r.emptyLocked()
	}
	obslog.L().Info("room_unbind",
		zap.String("room_id", r.id),
		zap.String("session_id", sessionID),
		zap.String("color", string(color)),
		zap.String("status", string(r.status)),
	)

	// Settle the forfeit before releasing the slot so the summary still
	// names both players.
	if r.status == StatusInProgress {
		res.Terminal = r.finishLocked(ReasonAbandoned, color.Opponent())
		res.Broadcast = append(res.Broadcast, r.gameOverLocked())
	}
	r.slots[color] = ""
	return res, r.emptyLocked()
}

func (r *Room) emptyLocked() bool {
	return r.slots[engine.White] == "" && r.slots[engine.Black] == ""
}

// Tick is the periodic time check, driven by the registry scheduler, never
// self-scheduled. An expired running side finishes the game as a timeout;
// otherwise a live time_update is broadcast for display.
func (r *Room) Tick() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return Result{}
	}
	now := r.wc.Now()
	if r.timer.FlagIfExpired(now) {
		return r.timeoutLocked(r.pos.Turn())
	}
	snap := r.snapshotLocked()
	return Result{Broadcast: []wire.ServerMessage{{
		Type:        wire.TypeTimeUpdate,
		GameID:      r.id,
		GameStatus:  snap.GameStatus,
		ActiveColor: snap.ActiveColor,
		WhiteTimeMs: wire.Ms(snap.WhiteMs),
		BlackTimeMs: wire.Ms(snap.BlackMs),
	}}}
}

// TimeSync returns an on-demand clock snapshot for the requesting session.
func (r *Room) TimeSync() wire.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshotLocked()
	return wire.ServerMessage{
		Type:        wire.TypeTimeUpdate,
		GameID:      r.id,
		FEN:         snap.FEN,
		GameStatus:  snap.GameStatus,
		ActiveColor: snap.ActiveColor,
		WhiteTimeMs: wire.Ms(snap.WhiteMs),
		BlackTimeMs: wire.Ms(snap.BlackMs),
		IncrementMs: wire.Ms(snap.IncrementMs),
	}
}

// timeoutLocked settles a fallen flag: the flagged side loses on time
// unless the opponent lacks mating material, in which case the game is a
// draw.
func (r *Room) timeoutLocked(flagged engine.Color) Result {
	winner := flagged.Opponent()
	reason := ReasonTimeout
	if !engine.WinnableBy(r.pos, winner) {
		winner = ""
		reason = ReasonDraw
	}
	sum := r.finishLocked(reason, winner)
	return Result{Broadcast: []wire.ServerMessage{r.gameOverLocked()}, Terminal: sum}
}
