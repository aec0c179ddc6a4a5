package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"netarcade/internal/reliable"
)

// Client is one remote endpoint, identified by its ip:port.
type Client struct {
	Key  string
	Addr net.Addr
	// ID is a stable handle for the spectator surface; the wire protocol
	// never carries it.
	ID uuid.UUID

	engine   *reliable.Engine
	lastSeen time.Time
}

// Registry is the set of known clients in registration order. It never
// holds two entries with the same key.
type Registry struct {
	mu      sync.Mutex
	clients []*Client
	byKey   map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Client)}
}

// Register returns the client for addr, creating it with a fresh engine if
// it is new. added reports whether a new entry was made.
func (r *Registry) Register(addr net.Addr, now time.Time, newEngine func(net.Addr) *reliable.Engine) (c *Client, added bool) {
	key := addr.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.byKey[key]; ok {
		c.lastSeen = now
		return c, false
	}
	c = &Client{
		Key:      key,
		Addr:     addr,
		ID:       uuid.New(),
		engine:   newEngine(addr),
		lastSeen: now,
	}
	r.clients = append(r.clients, c)
	r.byKey[key] = c
	return c, true
}

func (r *Registry) Lookup(key string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byKey[key]
	return c, ok
}

func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[key]; !ok {
		return false
	}
	delete(r.byKey, key)
	for i, c := range r.clients {
		if c.Key == key {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot copies the client list so callers can send without holding the
// registry lock.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Idle returns clients not heard from for longer than timeout.
func (r *Registry) Idle(now time.Time, timeout time.Duration) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idle []*Client
	for _, c := range r.clients {
		if now.Sub(c.lastSeen) > timeout {
			idle = append(idle, c)
		}
	}
	return idle
}
