package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-live-server/internal/dispatch"
	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/presets"
	"github.com/park285/chess-live-server/internal/registry"
	"github.com/park285/chess-live-server/internal/room"
	"github.com/park285/chess-live-server/pkg/wire"
)

const (
	outboundBuffer = 32
	writeTimeout   = 5 * time.Second
)

// Handler is one live connection: it translates inbound protocol messages
// into room operations and room events into outbound frames. Inbound
// handling runs on the connection's read goroutine; outbound frames flow
// through a buffered channel drained by a single write goroutine, so no
// room operation ever blocks on network I/O.
type Handler struct {
	id   string
	conn *websocket.Conn

	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	rec      registry.Recorder
	catalog  *presets.Catalog
	defaults room.Settings

	out chan wire.ServerMessage

	// Bound room and color; owned by the read goroutine after being set
	// through room operations.
	roomID string
	color  engine.Color
}

// NewHandler wraps an accepted connection. rec may be nil.
func NewHandler(conn *websocket.Conn, reg *registry.Registry, disp *dispatch.Dispatcher, rec registry.Recorder, catalog *presets.Catalog, defaults room.Settings) *Handler {
	return &Handler{
		id:       uuid.NewString(),
		conn:     conn,
		reg:      reg,
		disp:     disp,
		rec:      rec,
		catalog:  catalog,
		defaults: defaults,
		out:      make(chan wire.ServerMessage, outboundBuffer),
	}
}

// SessionID returns the connection's opaque identifier.
func (h *Handler) SessionID() string { return h.id }

// Send enqueues an outbound frame without blocking. False means the
// connection can no longer keep up and the frame was dropped.
func (h *Handler) Send(msg wire.ServerMessage) bool {
	select {
	case h.out <- msg:
		return true
	default:
		return false
	}
}

// Serve pumps the connection until the peer disconnects or ctx is
// cancelled. On return the session has been unbound from its room exactly
// once.
func (h *Handler) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go h.writeLoop(ctx)

	obslog.L().Info("session_open", zap.String("session_id", h.id))
	defer func() {
		h.leaveRoom()
		obslog.L().Info("session_close", zap.String("session_id", h.id))
	}()

	// Frames are read raw and decoded here, not through wsjson: wsjson
	// closes the connection itself on an unmarshal failure, while a
	// malformed frame must degrade only that frame.
	for {
		_, data, err := h.conn.Read(ctx)
		if err != nil {
			return
		}
		var msg wire.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.Send(wire.ServerMessage{Type: wire.TypeError, Error: "invalid message format"})
			continue
		}
		h.route(ctx, msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, h.conn, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// route dispatches one inbound message to exactly one room operation.
func (h *Handler) route(ctx context.Context, msg wire.ClientMessage) {
	switch msg.Action {
	case wire.ActionCreate:
		h.handleCreate(msg)
	case wire.ActionJoin:
		h.handleJoin(ctx, msg)
	case wire.ActionGetMoves:
		h.handleGetMoves(msg)
	case wire.ActionMove:
		h.handleMove(ctx, msg)
	case wire.ActionResign:
		h.handleResign(ctx)
	case wire.ActionTimeSync:
		h.handleTimeSync()
	default:
		h.sendError("unknown action: " + msg.Action)
	}
}

func (h *Handler) handleCreate(msg wire.ClientMessage) {
	settings, err := h.settingsFor(msg)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	r, err := h.reg.Create(settings)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	res, err := r.Bind(h.id)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	h.roomID, h.color = r.ID(), res.Color
	h.disp.Bind(r.ID(), h.id, h)

	h.Send(snapshotMessage(wire.TypeGameCreated, res.Color, res.Snapshot))
}

func (h *Handler) handleJoin(ctx context.Context, msg wire.ClientMessage) {
	if msg.GameID == "" {
		h.sendError("game_id is required")
		return
	}
	r, err := h.reg.Get(msg.GameID)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	// Joining a new game implicitly leaves the previous one.
	if h.roomID != "" && h.roomID != msg.GameID {
		h.leaveRoom()
	}
	res, err := r.Bind(h.id)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	h.roomID, h.color = r.ID(), res.Color
	h.disp.Bind(r.ID(), h.id, h)

	h.Send(snapshotMessage(wire.TypeJoined, res.Color, res.Snapshot))
	h.publish(ctx, res.Result)
}

func (h *Handler) handleGetMoves(msg wire.ClientMessage) {
	r, ok := h.currentRoom()
	if !ok {
		return
	}
	moves, err := r.LegalMoves(h.id, msg.MoveFrom)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	if moves == nil {
		moves = []string{}
	}
	h.Send(wire.ServerMessage{
		Type:           wire.TypeAvailableMoves,
		GameID:         r.ID(),
		AvailableMoves: moves,
	})
}

func (h *Handler) handleMove(ctx context.Context, msg wire.ClientMessage) {
	r, ok := h.currentRoom()
	if !ok {
		return
	}
	res, err := r.MakeMove(h.id, msg.MoveFrom, msg.MoveTo, msg.Promotion)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	h.publish(ctx, res)
}

func (h *Handler) handleResign(ctx context.Context) {
	r, ok := h.currentRoom()
	if !ok {
		return
	}
	res, err := r.Resign(h.id)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	h.publish(ctx, res)
}

func (h *Handler) handleTimeSync() {
	r, ok := h.currentRoom()
	if !ok {
		return
	}
	h.Send(r.TimeSync())
}

// publish fans an operation's events out to every bound session (including
// this one) and records a terminal summary when present.
func (h *Handler) publish(ctx context.Context, res room.Result) {
	if len(res.Broadcast) > 0 {
		h.disp.Publish(h.roomID, res.Broadcast...)
	}
	if res.Terminal != nil && h.rec != nil {
		h.rec.Record(ctx, *res.Terminal)
	}
}

// currentRoom resolves the handler's bound room, reporting the protocol
// error itself when there is none.
func (h *Handler) currentRoom() (*room.Room, bool) {
	if h.roomID == "" {
		h.sendError("not in a game")
		return nil, false
	}
	r, err := h.reg.Get(h.roomID)
	if err != nil {
		h.sendError(err.Error())
		return nil, false
	}
	return r, true
}

// leaveRoom unbinds from the current room, publishing any forfeit event and
// removing the room when no session remains.
func (h *Handler) leaveRoom() {
	if h.roomID == "" {
		return
	}
	roomID, color := h.roomID, h.color
	h.roomID, h.color = "", ""
	obslog.L().Info("session_leave",
		zap.String("session_id", h.id),
		zap.String("room_id", roomID),
		zap.String("color", string(color)),
	)

	if r, err := h.reg.Get(roomID); err == nil {
		res, empty := r.Unbind(h.id)
		h.disp.Unbind(roomID, h.id)
		if len(res.Broadcast) > 0 {
			h.disp.Publish(roomID, res.Broadcast...)
		}
		if res.Terminal != nil && h.rec != nil {
			h.rec.Record(context.Background(), *res.Terminal)
		}
		if empty {
			h.reg.Remove(roomID)
		}
		return
	}
	h.disp.Unbind(roomID, h.id)
}

// settingsFor resolves the time control: preset name first, then explicit
// minutes/increment, then server defaults.
func (h *Handler) settingsFor(msg wire.ClientMessage) (room.Settings, error) {
	if msg.Preset != "" {
		p, ok := h.catalog.Get(msg.Preset)
		if !ok {
			return room.Settings{}, staticErr("unknown preset: " + msg.Preset)
		}
		return room.Settings{Initial: p.Initial(), Increment: p.Increment()}, nil
	}
	s := h.defaults
	if msg.StartTimeMinutes != nil {
		if *msg.StartTimeMinutes <= 0 || *msg.StartTimeMinutes > 180 {
			return room.Settings{}, staticErr("start_time_minutes out of range")
		}
		s.Initial = time.Duration(*msg.StartTimeMinutes) * time.Minute
	}
	if msg.IncrementSeconds != nil {
		if *msg.IncrementSeconds < 0 || *msg.IncrementSeconds > 60 {
			return room.Settings{}, staticErr("increment_seconds out of range")
		}
		s.Increment = time.Duration(*msg.IncrementSeconds) * time.Second
	}
	return s, nil
}

func (h *Handler) sendError(text string) {
	h.Send(wire.ServerMessage{Type: wire.TypeError, Error: text})
}

// snapshotMessage builds the direct reply for create/join.
func snapshotMessage(msgType string, color engine.Color, snap room.Snapshot) wire.ServerMessage {
	return wire.ServerMessage{
		Type:        msgType,
		GameID:      snap.GameID,
		Color:       string(color),
		FEN:         snap.FEN,
		GameStatus:  snap.GameStatus,
		ActiveColor: snap.ActiveColor,
		WhiteTimeMs: wire.Ms(snap.WhiteMs),
		BlackTimeMs: wire.Ms(snap.BlackMs),
		IncrementMs: wire.Ms(snap.IncrementMs),
	}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
