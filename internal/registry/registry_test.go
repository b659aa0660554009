package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/park285/chess-live-server/internal/room"
	"github.com/park285/chess-live-server/pkg/wire"
)

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(fc), fc
}

func TestCreateGetRemove(t *testing.T) {
	reg, _ := newTestRegistry(t)

	r1, err := reg.Create(room.Settings{Initial: time.Minute})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r2, err := reg.Create(room.Settings{Initial: time.Minute})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r1.ID() == r2.ID() {
		t.Fatalf("duplicate room ids: %s", r1.ID())
	}
	if reg.Len() != 2 {
		t.Fatalf("len = %d", reg.Len())
	}

	got, err := reg.Get(r1.ID())
	if err != nil || got != r1 {
		t.Fatalf("get = %v, %v", got, err)
	}
	if _, err := reg.Get("no-such-room"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing room err = %v", err)
	}

	reg.Remove(r1.ID())
	if _, err := reg.Get(r1.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed room err = %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("len after remove = %d", reg.Len())
	}
	// Removing twice is harmless.
	reg.Remove(r1.ID())
}

type capturePublisher struct {
	byRoom map[string][]wire.ServerMessage
}

func (p *capturePublisher) Publish(roomID string, msgs ...wire.ServerMessage) {
	if p.byRoom == nil {
		p.byRoom = map[string][]wire.ServerMessage{}
	}
	p.byRoom[roomID] = append(p.byRoom[roomID], msgs...)
}

type captureRecorder struct {
	sums []room.Summary
}

func (r *captureRecorder) Record(_ context.Context, sum room.Summary) {
	r.sums = append(r.sums, sum)
}

func TestSchedulerTickPublishesAndRecords(t *testing.T) {
	reg, fc := newTestRegistry(t)
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	sched := NewScheduler(reg, pub, rec, 100*time.Millisecond)

	r, err := reg.Create(room.Settings{Initial: 10 * time.Second})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Bind("w"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := r.Bind("b"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	// Mid-game tick: a time update, no terminal.
	fc.Advance(3 * time.Second)
	sched.tickAll(context.Background())
	msgs := pub.byRoom[r.ID()]
	if len(msgs) != 1 || msgs[0].Type != wire.TypeTimeUpdate {
		t.Fatalf("msgs = %+v", msgs)
	}
	if len(rec.sums) != 0 {
		t.Fatalf("premature record: %+v", rec.sums)
	}

	// Flag fall: game over broadcast plus one archive record.
	fc.Advance(8 * time.Second)
	sched.tickAll(context.Background())
	msgs = pub.byRoom[r.ID()]
	if len(msgs) != 2 || msgs[1].Type != wire.TypeGameOver {
		t.Fatalf("msgs = %+v", msgs)
	}
	if len(rec.sums) != 1 || rec.sums[0].Reason != string(room.ReasonTimeout) {
		t.Fatalf("records = %+v", rec.sums)
	}

	// The finished room stays quiet on later ticks.
	fc.Advance(time.Second)
	sched.tickAll(context.Background())
	if len(pub.byRoom[r.ID()]) != 2 || len(rec.sums) != 1 {
		t.Fatalf("finished room produced events")
	}
}

func TestSchedulerSkipsWaitingRooms(t *testing.T) {
	reg, fc := newTestRegistry(t)
	pub := &capturePublisher{}
	sched := NewScheduler(reg, pub, nil, 100*time.Millisecond)

	r, err := reg.Create(room.Settings{Initial: 10 * time.Second})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Bind("w"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	fc.Advance(time.Hour)
	sched.tickAll(context.Background())
	if len(pub.byRoom[r.ID()]) != 0 {
		t.Fatalf("waiting room emitted events: %+v", pub.byRoom[r.ID()])
	}
}
