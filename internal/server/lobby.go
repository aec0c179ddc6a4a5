package server

import (
	"sync"

	"github.com/google/uuid"
)

// Lobby tracks which clients have declared themselves ready. Ready is
// sticky: nothing but removal clears it.
type Lobby struct {
	mu    sync.Mutex
	ready map[string]bool
}

func NewLobby() *Lobby {
	return &Lobby{ready: make(map[string]bool)}
}

// MarkReady reports whether key was not ready before.
func (l *Lobby) MarkReady(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready[key] {
		return false
	}
	l.ready[key] = true
	return true
}

func (l *Lobby) IsReady(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready[key]
}

func (l *Lobby) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ready, key)
}

func (l *Lobby) Ready() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.ready {
		if r {
			n++
		}
	}
	return n
}

// Gate opens once, the first time every connected client is ready, and
// stays open for the life of the process.
type Gate struct {
	mu      sync.Mutex
	fired   bool
	matchID uuid.UUID
}

// Evaluate fires the gate if total > 0 and ready == total. It returns true
// only on the call that fires it.
func (g *Gate) Evaluate(total, ready int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fired || total == 0 || ready != total {
		return false
	}
	g.fired = true
	g.matchID = uuid.New()
	return true
}

func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

// MatchID is the id assigned when the gate fired, or uuid.Nil before.
func (g *Gate) MatchID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.matchID
}
