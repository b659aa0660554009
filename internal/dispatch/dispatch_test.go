package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/park285/chess-live-server/pkg/wire"
)

type fakeSink struct {
	msgs []wire.ServerMessage
	dead bool
}

func (s *fakeSink) Send(msg wire.ServerMessage) bool {
	if s.dead {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func TestPublishReachesAllBoundSinks(t *testing.T) {
	d := New()
	a, b := &fakeSink{}, &fakeSink{}
	d.Bind("room", "sa", a)
	d.Bind("room", "sb", b)

	d.Publish("room",
		wire.ServerMessage{Type: wire.TypeMoveMade},
		wire.ServerMessage{Type: wire.TypeGameOver},
	)

	for name, s := range map[string]*fakeSink{"a": a, "b": b} {
		if len(s.msgs) != 2 {
			t.Fatalf("sink %s got %d messages", name, len(s.msgs))
		}
		if s.msgs[0].Type != wire.TypeMoveMade || s.msgs[1].Type != wire.TypeGameOver {
			t.Fatalf("sink %s order = %v", name, s.msgs)
		}
	}
}

func TestPublishIsolatedPerRoom(t *testing.T) {
	d := New()
	a, b := &fakeSink{}, &fakeSink{}
	d.Bind("room1", "sa", a)
	d.Bind("room2", "sb", b)

	d.Publish("room1", wire.ServerMessage{Type: wire.TypeTimeUpdate})
	if len(a.msgs) != 1 || len(b.msgs) != 0 {
		t.Fatalf("a=%d b=%d", len(a.msgs), len(b.msgs))
	}
}

func TestDeadSinkDoesNotBlockPeers(t *testing.T) {
	d := New()
	dead, live := &fakeSink{dead: true}, &fakeSink{}
	d.Bind("room", "dead", dead)
	d.Bind("room", "live", live)

	d.Publish("room", wire.ServerMessage{Type: wire.TypeMoveMade})
	if len(live.msgs) != 1 {
		t.Fatalf("live sink got %d messages", len(live.msgs))
	}
}

func TestUnbindStopsDelivery(t *testing.T) {
	d := New()
	a := &fakeSink{}
	d.Bind("room", "sa", a)
	d.Unbind("room", "sa")

	d.Publish("room", wire.ServerMessage{Type: wire.TypeMoveMade})
	if len(a.msgs) != 0 {
		t.Fatalf("unbound sink received %d messages", len(a.msgs))
	}
	// Unbinding from an unknown room is harmless.
	d.Unbind("ghost", "sa")
}

func TestPublishToUnknownRoomIsNoop(t *testing.T) {
	d := New()
	d.Publish("ghost", wire.ServerMessage{Type: wire.TypeMoveMade})
}

func TestRacingPublishersKeepOrderConsistentAcrossSinks(t *testing.T) {
	d := New()
	a, b := &fakeSink{}, &fakeSink{}
	d.Bind("room", "sa", a)
	d.Bind("room", "sb", b)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Publish("room", wire.ServerMessage{Type: wire.TypeTimeUpdate, GameID: fmt.Sprintf("m%d", i)})
		}(i)
	}
	wg.Wait()

	if len(a.msgs) != n || len(b.msgs) != n {
		t.Fatalf("delivered %d/%d messages", len(a.msgs), len(b.msgs))
	}
	for i := range a.msgs {
		if a.msgs[i].GameID != b.msgs[i].GameID {
			t.Fatalf("order diverged at %d: %s vs %s", i, a.msgs[i].GameID, b.msgs[i].GameID)
		}
	}
}
