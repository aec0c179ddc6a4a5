package server

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"netarcade/internal/protocol"
	"netarcade/internal/reliable"
)

const (
	// LobbyInterval is the cadence of lobby broadcasts and gate checks.
	LobbyInterval = 50 * time.Millisecond

	recvBufferSize = 2048
)

// Simulation is what the server feeds: a start hook and player input.
type Simulation interface {
	Start()
	Input(in protocol.PlayerInputPayload)
}

// Server is the authoritative endpoint. It owns one socket, the client
// registry, the lobby and the start gate.
type Server struct {
	conn     net.PacketConn
	sim      Simulation
	registry *Registry
	lobby    *Lobby
	gate     Gate
	hub      *Hub

	logger      *log.Logger
	now         func() time.Time
	idleTimeout time.Duration
	engineOpts  []reliable.Option
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithIdleTimeout evicts clients silent for longer than d. Zero disables
// eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithEngineOptions configures every per-client reliability engine.
func WithEngineOptions(opts ...reliable.Option) Option {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Listen binds addr (":4242", "127.0.0.1:0", ...) and wraps it in a Server.
func Listen(addr string, sim Simulation, opts ...Option) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return New(conn, sim, opts...), nil
}

func New(conn net.PacketConn, sim Simulation, opts ...Option) *Server {
	s := &Server{
		conn:     conn,
		sim:      sim,
		registry: NewRegistry(),
		lobby:    NewLobby(),
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger)
	return s
}

func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Lobby() *Lobby { return s.lobby }

func (s *Server) Gate() *Gate { return &s.gate }

func (s *Server) newEngine(addr net.Addr) *reliable.Engine {
	opts := append([]reliable.Option{
		reliable.WithLogger(s.logger),
		reliable.WithClock(s.now),
	}, s.engineOpts...)
	return reliable.New(s.conn, addr, opts...)
}

// Serve reads datagrams until ctx is cancelled or the socket is closed.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	s.logger.Printf("UDP server listening on %s", s.conn.LocalAddr())
	buf := make([]byte, recvBufferSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Printf("Read error: %v", err)
			continue
		}
		s.handle(buf[:n], addr)
	}
}

func (s *Server) handle(data []byte, addr net.Addr) {
	h, body, err := protocol.Decode(data)
	if err != nil {
		return
	}

	c, added := s.registry.Register(addr, s.now(), s.newEngine)
	if added {
		s.logger.Printf("New client: %s (%s)", c.Key, c.ID)
	}
	c.engine.AckIfImportant(h)

	switch h.Type {
	case protocol.Ready:
		if s.lobby.MarkReady(c.Key) {
			s.logger.Printf("Client %s is ready", c.Key)
		}

	case protocol.PlayerInput:
		var in protocol.PlayerInputPayload
		if in.UnmarshalBinary(body) == nil {
			s.sim.Input(in)
		}

	case protocol.Ping:
		var ping protocol.PingPayload
		if ping.UnmarshalBinary(body) == nil {
			c.engine.Send(protocol.Pong, ping, false)
		}

	case protocol.Ack:
		var ack protocol.AckPayload
		if ack.UnmarshalBinary(body) == nil {
			c.engine.OnAck(ack.AckSequence)
		}
	}
}

// broadcast sends one packet per registered client through that client's
// engine. A failed send is logged by the engine and skipped.
func (s *Server) broadcast(t protocol.MessageType, payload encoding.BinaryMarshaler, important bool) int {
	sent := 0
	for _, c := range s.registry.Snapshot() {
		if c.engine.Send(t, payload, important) {
			sent++
		}
	}
	return sent
}

func (s *Server) BroadcastLobbyStatus(total, ready uint8) int {
	return s.broadcast(protocol.LobbyStatus, protocol.LobbyStatusPayload{TotalClients: total, ReadyClients: ready}, false)
}

// BroadcastGameState sends gs to every client, unacknowledged, and
// forwards it to spectators.
func (s *Server) BroadcastGameState(gs protocol.GameStatePayload) {
	s.broadcast(protocol.GameState, gs, false)
	s.hub.Publish(stateFrame(&gs))
}

// BroadcastSimple sends a header-only message such as Start.
func (s *Server) BroadcastSimple(t protocol.MessageType, important bool) int {
	return s.broadcast(t, nil, important)
}

// LobbyTick runs one lobby iteration: evict idle clients, broadcast the
// counts, try the start gate and drive retransmissions.
func (s *Server) LobbyTick() {
	if s.idleTimeout > 0 {
		s.evictIdle()
	}

	total := s.registry.Len()
	ready := s.lobby.Ready()
	s.BroadcastLobbyStatus(clampCount(total), clampCount(ready))
	s.hub.Publish(lobbyFrame(total, ready, s.gate.Fired(), s.gate.MatchID()))

	if s.gate.Evaluate(total, ready) {
		s.logger.Printf("All clients ready. Starting game (match %s)", s.gate.MatchID())
		s.sim.Start()
		s.BroadcastSimple(protocol.Start, true)
	}

	for _, c := range s.registry.Snapshot() {
		c.engine.Tick()
	}
}

// RunLobby calls LobbyTick every interval until ctx is done.
func (s *Server) RunLobby(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.hub.Close()
			return
		case <-ticker.C:
			s.LobbyTick()
		}
	}
}

func (s *Server) evictIdle() {
	for _, c := range s.registry.Idle(s.now(), s.idleTimeout) {
		s.registry.Remove(c.Key)
		s.lobby.Remove(c.Key)
		s.logger.Printf("Evicted idle client %s", c.Key)
	}
}

func clampCount(n int) uint8 {
	return uint8(min(n, 255))
}

// ClientInfo describes one client for the status endpoint.
type ClientInfo struct {
	ID      string `json:"id"`
	Addr    string `json:"addr"`
	Ready   bool   `json:"ready"`
	Pending int    `json:"pending"`
	Loss    uint64 `json:"loss"`
}

type Status struct {
	Total   int          `json:"total"`
	Ready   int          `json:"ready"`
	Started bool         `json:"started"`
	MatchID string       `json:"matchId,omitempty"`
	Clients []ClientInfo `json:"clients"`
}

func (s *Server) Status() Status {
	st := Status{
		Ready:   s.lobby.Ready(),
		Started: s.gate.Fired(),
		Clients: []ClientInfo{},
	}
	if st.Started {
		st.MatchID = s.gate.MatchID().String()
	}
	for _, c := range s.registry.Snapshot() {
		st.Clients = append(st.Clients, ClientInfo{
			ID:      c.ID.String(),
			Addr:    c.Key,
			Ready:   s.lobby.IsReady(c.Key),
			Pending: c.engine.Pending(),
			Loss:    c.engine.Loss(),
		})
	}
	st.Total = len(st.Clients)
	return st
}
