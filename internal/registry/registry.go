// Package registry owns the process-wide mapping from room identifier to
// live room, plus the scheduler that drives the periodic clock tick over
// every room. It is constructed once at startup and passed to each
// connection handler; there is no hidden singleton.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/room"
)

// ErrNotFound is returned for unknown room identifiers.
var ErrNotFound = roomNotFoundError{}

type roomNotFoundError struct{}

func (roomNotFoundError) Error() string { return "game not found" }

// createAttempts bounds identifier regeneration on collision. With random
// UUIDs a second attempt is already unreachable in practice.
const createAttempts = 5

// Registry is safe for concurrent creation, lookup, and removal. A *Room
// obtained from Get stays valid for the caller's operation even if removed
// concurrently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room
	wc    clockwork.Clock
}

// New builds an empty registry whose rooms stamp time from wc.
func New(wc clockwork.Clock) *Registry {
	return &Registry{rooms: map[string]*room.Room{}, wc: wc}
}

// Create inserts a fresh room in waiting state under a new unique
// identifier. Identifier collision triggers regeneration, not failure.
func (g *Registry) Create(s room.Settings) (*room.Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < createAttempts; i++ {
		id := uuid.NewString()
		if _, exists := g.rooms[id]; exists {
			continue
		}
		r := room.New(id, s, g.wc)
		g.rooms[id] = r
		obslog.L().Info("room_create",
			zap.String("room_id", id),
			zap.Int64("initial_ms", s.Initial.Milliseconds()),
			zap.Int64("increment_ms", s.Increment.Milliseconds()),
			zap.Int("rooms", len(g.rooms)),
		)
		return r, nil
	}
	return nil, staticErr("room id space exhausted")
}

// Get resolves a room id to its live room.
func (g *Registry) Get(id string) (*room.Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// Remove drops a room from the registry. Holders of an existing reference
// may finish their in-flight operation against it.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; ok {
		delete(g.rooms, id)
		obslog.L().Info("room_remove", zap.String("room_id", id), zap.Int("rooms", len(g.rooms)))
	}
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// snapshot copies the current room set so tick never holds the registry
// lock across room operations.
func (g *Registry) snapshot() []*room.Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*room.Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
