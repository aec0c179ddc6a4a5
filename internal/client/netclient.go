package client

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"netarcade/internal/protocol"
	"netarcade/internal/reliable"
	"netarcade/internal/world"
)

const (
	// PingInterval is how much Update time accumulates between pings.
	PingInterval = time.Second
	// UpdateInterval is the cadence Run drives Update at.
	UpdateInterval = 16 * time.Millisecond

	recvBufferSize = 2048
	inboxSize      = 64
)

// EntityStore is the local entity container the client mirrors remote
// state into.
type EntityStore interface {
	CreateEntity() world.Entity
	DestroyEntity(e world.Entity)
	AddComponent(e world.Entity, value any) error
	SetPosition(e world.Entity, p world.PositionData) bool
	SetHealth(e world.Entity, current int32) bool
	Texture(name string) world.Texture
}

// NetClient is the client side of the UDP protocol: one socket talking to
// one server.
type NetClient struct {
	conn    net.PacketConn
	server  net.Addr
	engine  *reliable.Engine
	mirror  *Mirror
	logger  *log.Logger
	localID int32
	now     func() time.Time

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once

	started atomic.Bool

	mu          sync.Mutex
	pingSeq     uint32
	pingSentAt  time.Time
	pingTimer   time.Duration
	latency     time.Duration
	haveLatency bool
	lobbyTotal  uint8
	lobbyReady  uint8
}

type Option func(*options)

type options struct {
	logger     *log.Logger
	now        func() time.Time
	engineOpts []reliable.Option
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEngineOptions passes options through to the reliability engine.
func WithEngineOptions(opts ...reliable.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// Dial binds localPort and prepares to talk to serverAddr. The bound port
// doubles as the client's network id.
func Dial(serverAddr string, localPort int, store EntityStore, localPlayer world.Entity, opts ...Option) (*NetClient, error) {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve server %q: %w", serverAddr, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("bind local port %d: %w", localPort, err)
	}
	id := int32(conn.LocalAddr().(*net.UDPAddr).Port)
	return New(conn, raddr, id, store, localPlayer, opts...), nil
}

// New wraps an already bound socket and starts its read pump.
func New(conn net.PacketConn, server net.Addr, localID int32, store EntityStore, localPlayer world.Entity, opts ...Option) *NetClient {
	o := options{logger: log.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	engineOpts := append([]reliable.Option{
		reliable.WithLogger(o.logger),
		reliable.WithClock(o.now),
	}, o.engineOpts...)

	mirror := NewMirror(store, localID, localPlayer)
	mirror.logger = o.logger

	c := &NetClient{
		conn:    conn,
		server:  server,
		engine:  reliable.New(conn, server, engineOpts...),
		mirror:  mirror,
		logger:  o.logger,
		localID: localID,
		now:     o.now,
		inbox:   make(chan []byte, inboxSize),
		done:    make(chan struct{}),
	}

	go c.readPump()

	c.logger.Printf("Client initialized. LocalID=%d, server=%s", localID, server)
	return c
}

func (c *NetClient) readPump() {
	buf := make([]byte, recvBufferSize)
	for {
		n, _, err := c.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Printf("Read error: %v", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case c.inbox <- data:
		default:
			// Drop if buffer full
		}
	}
}

// SendPacket numbers and sends one message through the reliability engine.
func (c *NetClient) SendPacket(t protocol.MessageType, payload encoding.BinaryMarshaler, important bool) bool {
	return c.engine.Send(t, payload, important)
}

// SendReady tells the server this client is ready to start.
func (c *NetClient) SendReady() bool {
	return c.engine.Send(protocol.Ready, nil, true)
}

// SendInput sends the latest input state, unreliably.
func (c *NetClient) SendInput(in protocol.PlayerInputPayload) bool {
	in.NetID = c.localID
	return c.engine.Send(protocol.PlayerInput, in, false)
}

// Update makes one non-blocking receive attempt, dispatches what arrived,
// retransmits overdue important messages and pings once per accumulated
// second.
func (c *NetClient) Update(dt time.Duration) {
	select {
	case data := <-c.inbox:
		c.handle(data)
	default:
	}

	c.engine.Tick()
	c.maybePing(dt)
}

// Run calls Update every interval until ctx is done.
func (c *NetClient) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Update(interval)
		}
	}
}

func (c *NetClient) handle(data []byte) {
	h, body, err := protocol.Decode(data)
	if err != nil {
		return
	}
	c.engine.AckIfImportant(h)

	switch h.Type {
	case protocol.Ack:
		var ack protocol.AckPayload
		if ack.UnmarshalBinary(body) == nil {
			c.engine.OnAck(ack.AckSequence)
		}

	case protocol.Start:
		if c.started.CompareAndSwap(false, true) {
			c.logger.Printf("Received START: game started")
		}

	case protocol.Pong:
		var pong protocol.PingPayload
		if pong.UnmarshalBinary(body) == nil {
			c.onPong(pong.PingSequence)
		}

	case protocol.LobbyStatus:
		var ls protocol.LobbyStatusPayload
		if ls.UnmarshalBinary(body) == nil {
			c.mu.Lock()
			c.lobbyTotal = ls.TotalClients
			c.lobbyReady = ls.ReadyClients
			c.mu.Unlock()
		}

	case protocol.GameState:
		var gs protocol.GameStatePayload
		if gs.UnmarshalBinary(body) == nil {
			c.mirror.Apply(&gs)
		}
	}
}

// onPong only accepts the echo of the most recent ping.
func (c *NetClient) onPong(seq uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq == 0 || seq != c.pingSeq {
		return
	}
	c.latency = c.now().Sub(c.pingSentAt)
	c.haveLatency = true
}

func (c *NetClient) maybePing(dt time.Duration) {
	c.mu.Lock()
	c.pingTimer += dt
	if c.pingTimer < PingInterval {
		c.mu.Unlock()
		return
	}
	c.pingTimer = 0
	c.pingSeq++
	seq := c.pingSeq
	c.pingSentAt = c.now()
	c.mu.Unlock()

	c.engine.Send(protocol.Ping, protocol.PingPayload{PingSequence: seq}, false)
}

// Started reports whether the server has sent Start. It never reverts.
func (c *NetClient) Started() bool {
	return c.started.Load()
}

// Latency returns the round trip of the last answered ping.
func (c *NetClient) Latency() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency, c.haveLatency
}

// PacketLoss returns the number of retransmissions, see reliable.Engine.
func (c *NetClient) PacketLoss() uint64 {
	return c.engine.Loss()
}

// PendingReliable returns how many important messages await an Ack.
func (c *NetClient) PendingReliable() int {
	return c.engine.Pending()
}

func (c *NetClient) LobbyStatus() (total, ready uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobbyTotal, c.lobbyReady
}

func (c *NetClient) LocalID() int32 {
	return c.localID
}

func (c *NetClient) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Mirror exposes the remote entity maps.
func (c *NetClient) Mirror() *Mirror {
	return c.mirror
}

func (c *NetClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
