package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/room"
	"github.com/park285/chess-live-server/pkg/wire"
)

// Publisher fans events out to every session bound to a room.
type Publisher interface {
	Publish(roomID string, msgs ...wire.ServerMessage)
}

// Recorder receives finished-game summaries. Implementations must not
// block the caller.
type Recorder interface {
	Record(ctx context.Context, sum room.Summary)
}

// Scheduler drives room.Tick on a fixed interval as the single scheduled
// task for all rooms, replacing any client-driven timing. Each tick is
// serialized with the room's own operations by the room mutex.
type Scheduler struct {
	reg      *Registry
	pub      Publisher
	rec      Recorder
	interval time.Duration
}

// NewScheduler wires the tick loop. rec may be nil when no archive is
// configured.
func NewScheduler(reg *Registry, pub Publisher, rec Recorder, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Scheduler{reg: reg, pub: pub, rec: rec, interval: interval}
}

// Run ticks until ctx is cancelled. Call in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	t := s.reg.wc.NewTicker(s.interval)
	defer t.Stop()
	obslog.L().Info("scheduler_start", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			obslog.L().Info("scheduler_stop")
			return
		case <-t.Chan():
			s.tickAll(ctx)
		}
	}
}

// tickAll runs one pass over the current room set.
func (s *Scheduler) tickAll(ctx context.Context) {
	for _, r := range s.reg.snapshot() {
		res := r.Tick()
		if len(res.Broadcast) > 0 && s.pub != nil {
			s.pub.Publish(r.ID(), res.Broadcast...)
		}
		if res.Terminal != nil && s.rec != nil {
			s.rec.Record(ctx, *res.Terminal)
		}
	}
}
