package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"netarcade/internal/protocol"
)

// Game is the authoritative simulation the server drives. Calls are
// serialised by the caller; implementations need no locking of their own.
type Game interface {
	// Start resets the game to its initial state.
	Start()
	OnPlayerInput(in protocol.PlayerInputPayload)
	// OnUpdate advances the simulation by dt seconds.
	OnUpdate(dt float32)
	State() protocol.GameStatePayload
}

type Kind string

const (
	KindRType Kind = "rtype"
	KindSnake Kind = "snake"
)

var registry = map[Kind]func(rng *rand.Rand) Game{
	KindRType: func(rng *rand.Rand) Game { return NewRType(rng) },
	KindSnake: func(rng *rand.Rand) Game { return NewSnake(rng) },
}

// Names lists the registered game kinds, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// New builds the game registered under name, seeded from the clock.
func New(name string) (Game, error) {
	return NewWithRand(name, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand builds the game registered under name using rng for every
// random choice it makes.
func NewWithRand(name string, rng *rand.Rand) (Game, error) {
	ctor, ok := registry[Kind(name)]
	if !ok {
		return nil, fmt.Errorf("unknown game %q (available: %v)", name, Names())
	}
	return ctor(rng), nil
}
