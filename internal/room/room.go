// Package room owns the authoritative state of one two-player game: the
// current position, player bindings, the countdown clock, and the lifecycle
// status. Every public operation runs under the room mutex, so concurrent
// messages for the same room apply as if serialized in arrival order and
// the periodic tick serializes with them.
package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/clock"
	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/pkg/wire"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting_for_opponent"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Reason records why a room reached StatusFinished.
type Reason string

const (
	ReasonCheckmate Reason = "checkmate"
	ReasonStalemate Reason = "stalemate"
	ReasonDraw      Reason = "draw"
	ReasonResign    Reason = "resignation"
	ReasonTimeout   Reason = "timeout"
	ReasonAbandoned Reason = "abandoned"
)

// Settings carries the time control for a new room.
type Settings struct {
	Initial   time.Duration
	Increment time.Duration
}

// Snapshot is a consistent view of room state used to build wire events.
type Snapshot struct {
	GameID      string
	FEN         string
	GameStatus  string
	ActiveColor string
	WhiteMs     int64
	BlackMs     int64
	IncrementMs int64
}

// Summary describes a finished game for the result archive.
type Summary struct {
	RoomID    string
	WhiteID   string
	BlackID   string
	Reason    string
	Status    string
	Winner    string
	FinalFEN  string
	WhiteMs   int64
	BlackMs   int64
	CreatedAt time.Time
	EndedAt   time.Time
}

// Room is one pending or running game. The zero value is not usable; use
// New.
type Room struct {
	mu  sync.Mutex
	wc  clockwork.Clock
	id  string
	pos engine.Position

	slots map[engine.Color]string // color -> bound session id
	timer *clock.Clock

	status  Status
	reason  Reason
	winner  engine.Color // "" on draw or while unfinished
	inCheck bool

	lastMove   *wire.LastMove
	lastMoveAt time.Time
	createdAt  time.Time
}

// New constructs a room in StatusWaiting holding the standard initial
// position. The clockwork clock supplies all timestamps, keeping the room
// deterministic under test.
func New(id string, s Settings, wc clockwork.Clock) *Room {
	return &Room{
		wc:        wc,
		id:        id,
		pos:       engine.Start(),
		slots:     map[engine.Color]string{},
		timer:     clock.New(s.Initial, s.Increment),
		status:    StatusWaiting,
		createdAt: wc.Now(),
	}
}

// ID returns the immutable room identifier.
func (r *Room) ID() string { return r.id }

// Snapshot returns the current externally visible state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	now := r.wc.Now()
	w, b := r.timer.Remaining(now)
	return Snapshot{
		GameID:      r.id,
		FEN:         r.pos.FEN(),
		GameStatus:  r.gameStatusLocked(),
		ActiveColor: string(r.pos.Turn()),
		WhiteMs:     w,
		BlackMs:     b,
		IncrementMs: r.timer.IncrementMs(),
	}
}

// gameStatusLocked maps lifecycle state onto the protocol's game_status
// token set.
func (r *Room) gameStatusLocked() string {
	switch r.status {
	case StatusWaiting:
		return string(StatusWaiting)
	case StatusFinished:
		switch r.reason {
		case ReasonStalemate:
			return engine.StatusStalemate
		case ReasonDraw:
			return engine.StatusDraw
		default:
			if r.winner == engine.White {
				return engine.StatusWhiteWins
			}
			if r.winner == engine.Black {
				return engine.StatusBlackWins
			}
			return engine.StatusDraw
		}
	default:
		if r.inCheck {
			return engine.StatusCheck
		}
		return engine.StatusInProgress
	}
}

// colorOfLocked resolves which side a session is bound to.
func (r *Room) colorOfLocked(sessionID string) (engine.Color, bool) {
	for c, sid := range r.slots {
		if sid == sessionID && sid != "" {
			return c, true
		}
	}
	return "", false
}

// finishLocked transitions to StatusFinished. No transition ever leaves it.
func (r *Room) finishLocked(reason Reason, winner engine.Color) *Summary {
	now := r.wc.Now()
	r.timer.Stop(now)
	r.status = StatusFinished
	r.reason = reason
	r.winner = winner
	w, b := r.timer.Remaining(now)
	obslog.L().Info("room_finished",
		zap.String("room_id", r.id),
		zap.String("reason", string(reason)),
		zap.String("winner", string(winner)),
	)
	return &Summary{
		RoomID:    r.id,
		WhiteID:   r.slots[engine.White],
		BlackID:   r.slots[engine.Black],
		Reason:    string(reason),
		Status:    r.gameStatusLocked(),
		Winner:    string(winner),
		FinalFEN:  r.pos.FEN(),
		WhiteMs:   w,
		BlackMs:   b,
		CreatedAt: r.createdAt,
		EndedAt:   now,
	}
}

// gameOverLocked builds the terminal broadcast event.
func (r *Room) gameOverLocked() wire.ServerMessage {
	snap := r.snapshotLocked()
	return wire.ServerMessage{
		Type:        wire.TypeGameOver,
		GameID:      r.id,
		FEN:         snap.FEN,
		GameStatus:  snap.GameStatus,
		Reason:      string(r.reason),
		Winner:      string(r.winner),
		WhiteTimeMs: wire.Ms(snap.WhiteMs),
		BlackTimeMs: wire.Ms(snap.BlackMs),
	}
}
