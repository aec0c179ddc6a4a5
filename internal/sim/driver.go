package sim

import (
	"context"
	"log"
	"sync"
	"time"

	"netarcade/internal/game"
	"netarcade/internal/protocol"
)

// TickInterval is the fixed simulation cadence.
const TickInterval = 50 * time.Millisecond

// Broadcaster receives every snapshot the driver produces.
type Broadcaster interface {
	BroadcastGameState(gs protocol.GameStatePayload)
}

// BroadcasterFunc adapts a plain function to Broadcaster.
type BroadcasterFunc func(gs protocol.GameStatePayload)

func (f BroadcasterFunc) BroadcastGameState(gs protocol.GameStatePayload) { f(gs) }

// Driver owns the game and steps it on a fixed cadence once started.
// Input, Start and Step may be called from different goroutines.
type Driver struct {
	mu       sync.Mutex
	game     game.Game
	started  bool
	lastTick time.Time
	ticks    uint64

	out      Broadcaster
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
}

type Option func(*Driver)

func WithInterval(d time.Duration) Option {
	return func(drv *Driver) { drv.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(drv *Driver) { drv.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(drv *Driver) {
		if l != nil {
			drv.logger = l
		}
	}
}

func New(g game.Game, out Broadcaster, opts ...Option) *Driver {
	d := &Driver{
		game:     g,
		out:      out,
		logger:   log.Default(),
		interval: TickInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start resets the game and begins stepping it. Calling it again restarts
// the game from scratch.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.game.Start()
	d.started = true
	d.lastTick = d.now()
	d.logger.Printf("Simulation started")
}

func (d *Driver) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Input forwards one player input to the game. Inputs are accepted before
// the game starts too; Start wipes whatever they did.
func (d *Driver) Input(in protocol.PlayerInputPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.game.OnPlayerInput(in)
}

// Step advances the game by the wall time since the previous step and
// broadcasts the resulting snapshot. It does nothing before Start.
func (d *Driver) Step() bool {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return false
	}
	now := d.now()
	dt := now.Sub(d.lastTick)
	d.lastTick = now
	d.game.OnUpdate(float32(dt.Seconds()))
	gs := d.game.State()
	d.ticks++
	d.mu.Unlock()

	d.out.BroadcastGameState(gs)
	return true
}

// Ticks returns how many steps have run.
func (d *Driver) Ticks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// Run steps the game every interval until ctx is done.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Step()
		}
	}
}
