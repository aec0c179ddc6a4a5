package sim

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"netarcade/internal/game"
	"netarcade/internal/protocol"
)

type recordingGame struct {
	starts int
	inputs []protocol.PlayerInputPayload
	dts    []float32
}

func (g *recordingGame) Start() { g.starts++ }

func (g *recordingGame) OnPlayerInput(in protocol.PlayerInputPayload) {
	g.inputs = append(g.inputs, in)
}

func (g *recordingGame) OnUpdate(dt float32) { g.dts = append(g.dts, dt) }

func (g *recordingGame) State() protocol.GameStatePayload {
	var gs protocol.GameStatePayload
	gs.AddPlayer(protocol.PlayerState{ID: int32(len(g.dts)), Health: 1})
	return gs
}

type collector struct {
	mu    sync.Mutex
	snaps []protocol.GameStatePayload
}

func (c *collector) BroadcastGameState(gs protocol.GameStatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, gs)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var quiet = WithLogger(log.New(io.Discard, "", 0))

func TestStepDoesNothingBeforeStart(t *testing.T) {
	g := &recordingGame{}
	out := &collector{}
	d := New(g, out, quiet)

	d.Input(protocol.PlayerInputPayload{NetID: 3})
	if d.Step() {
		t.Fatal("Step ran before Start")
	}
	if len(g.dts) != 0 || out.count() != 0 {
		t.Errorf("updates %d, broadcasts %d before start", len(g.dts), out.count())
	}
	if len(g.inputs) != 1 {
		t.Errorf("input not forwarded before start")
	}
}

func TestStepUsesElapsedTime(t *testing.T) {
	g := &recordingGame{}
	out := &collector{}
	clock := &fakeClock{t: time.Unix(50, 0)}
	d := New(g, out, quiet, WithClock(clock.Now))

	d.Start()
	if g.starts != 1 || !d.Started() {
		t.Fatal("start hook not run")
	}

	clock.Advance(50 * time.Millisecond)
	d.Step()
	clock.Advance(75 * time.Millisecond)
	d.Step()

	if len(g.dts) != 2 {
		t.Fatalf("updates = %d, want 2", len(g.dts))
	}
	if g.dts[0] < 0.0499 || g.dts[0] > 0.0501 || g.dts[1] < 0.0749 || g.dts[1] > 0.0751 {
		t.Errorf("dts = %v, want [0.05 0.075]", g.dts)
	}
	if out.count() != 2 || d.Ticks() != 2 {
		t.Errorf("broadcasts = %d, ticks = %d", out.count(), d.Ticks())
	}
	if id := out.snaps[1].Players[0].ID; id != 2 {
		t.Errorf("second snapshot carries state after %d updates, want 2", id)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	g, _ := game.New("rtype")
	out := &collector{}
	d := New(g, out, quiet, WithInterval(5*time.Millisecond))
	d.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for out.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("no snapshots broadcast")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
