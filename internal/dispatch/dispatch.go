// Package dispatch delivers room events to every session handler bound to
// that room. Delivery is a non-blocking enqueue: a handler whose connection
// already failed is skipped silently so the other party never sees an
// error for it. A per-room delivery lock keeps the fan-out order identical
// across all bound sinks even when publishers race.
package dispatch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/pkg/wire"
)

// Sink accepts an outbound message without blocking. It reports false when
// the message could not be queued (closed or saturated connection).
type Sink interface {
	Send(msg wire.ServerMessage) bool
}

// roomEntry pairs a room's sinks with the mutex serializing deliveries to
// them. Sink map mutations happen under the dispatcher lock; the delivery
// mutex is held only across fan-out.
type roomEntry struct {
	delivery sync.Mutex
	sinks    map[string]Sink // session id -> sink
}

// Dispatcher maps room ids to the sinks of their bound sessions.
type Dispatcher struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

func New() *Dispatcher {
	return &Dispatcher{rooms: map[string]*roomEntry{}}
}

// Bind registers a session's sink under a room.
func (d *Dispatcher) Bind(roomID, sessionID string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.rooms[roomID]
	if !ok {
		e = &roomEntry{sinks: map[string]Sink{}}
		d.rooms[roomID] = e
	}
	e.sinks[sessionID] = sink
}

// Unbind removes a session from a room, dropping the room entry when it was
// the last one.
func (d *Dispatcher) Unbind(roomID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.rooms[roomID]
	if !ok {
		return
	}
	delete(e.sinks, sessionID)
	if len(e.sinks) == 0 {
		delete(d.rooms, roomID)
	}
}

// Publish delivers msgs, in order, to every sink bound to the room. Racing
// publishers for the same room are serialized, so every sink observes the
// same relative event order.
func (d *Dispatcher) Publish(roomID string, msgs ...wire.ServerMessage) {
	if len(msgs) == 0 {
		return
	}
	d.mu.RLock()
	e, ok := d.rooms[roomID]
	var targets map[string]Sink
	if ok {
		targets = make(map[string]Sink, len(e.sinks))
		for sid, sink := range e.sinks {
			targets[sid] = sink
		}
	}
	d.mu.RUnlock()
	if !ok {
		return
	}

	e.delivery.Lock()
	defer e.delivery.Unlock()
	for sid, sink := range targets {
		for _, msg := range msgs {
			if !sink.Send(msg) {
				// Dead peer: swallowed, the disconnect lifecycle handles it.
				obslog.L().Debug("dispatch_drop",
					zap.String("room_id", roomID),
					zap.String("session_id", sid),
					zap.String("type", msg.Type),
				)
				break
			}
		}
	}
}
