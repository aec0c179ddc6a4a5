package reliable

import (
	"encoding"
	"log"
	"net"
	"sync"
	"time"

	"netarcade/internal/protocol"
)

// DefaultTimeout is how long an important message waits for its Ack before
// it is sent again.
const DefaultTimeout = 100 * time.Millisecond

// Writer is the part of net.PacketConn the engine sends through.
type Writer interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// Pending is an important message that has not been acknowledged yet.
type Pending struct {
	Data     []byte // exact bytes of the first transmission
	LastSent time.Time
	Retries  int
}

// Engine numbers, sends and retransmits messages from one local sender to
// one remote peer.
//
// Loss counts retransmissions, not distinct lost packets: a message resent
// three times adds three.
type Engine struct {
	conn   Writer
	peer   net.Addr
	logger *log.Logger

	timeout    time.Duration
	maxRetries int // 0 means retry forever
	onGiveUp   func(seq uint32)
	now        func() time.Time

	mu      sync.Mutex
	lastSeq uint32
	pending map[uint32]*Pending
	loss    uint64
}

type Option func(*Engine)

func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMaxRetries bounds retransmission. After n resends a message is dropped
// from the pending table and the give-up callback fires. The default is
// unbounded.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithGiveUp registers the "peer unreachable" callback used with
// WithMaxRetries. It runs without the engine lock held.
func WithGiveUp(fn func(seq uint32)) Option {
	return func(e *Engine) { e.onGiveUp = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(conn Writer, peer net.Addr, opts ...Option) *Engine {
	e := &Engine{
		conn:    conn,
		peer:    peer,
		logger:  log.Default(),
		timeout: DefaultTimeout,
		now:     time.Now,
		pending: make(map[uint32]*Pending),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Peer returns the address every packet is sent to.
func (e *Engine) Peer() net.Addr {
	return e.peer
}

// Send stamps the next sequence number and the current time onto a header,
// writes the packet and, if important, keeps a copy until it is acknowledged.
// A failed write is logged and reported as false; an important message is
// still kept so Tick retries it.
func (e *Engine) Send(t protocol.MessageType, payload encoding.BinaryMarshaler, important bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeq++
	h := protocol.Header{
		Type:      t,
		Sequence:  e.lastSeq,
		Timestamp: protocol.Timestamp(),
	}
	if important {
		h.Flags |= protocol.FlagImportant
	}

	pkt, err := protocol.Encode(h, payload)
	if err != nil {
		e.logger.Printf("encode %s seq=%d: %v", t, h.Sequence, err)
		return false
	}

	if important {
		e.pending[h.Sequence] = &Pending{Data: pkt, LastSent: e.now()}
	}

	if _, err := e.conn.WriteTo(pkt, e.peer); err != nil {
		e.logger.Printf("send %s seq=%d to %s failed: %v", t, h.Sequence, e.peer, err)
		return false
	}
	return true
}

// AckIfImportant acknowledges h when its important flag is set.
func (e *Engine) AckIfImportant(h protocol.Header) bool {
	if !h.Important() {
		return false
	}
	return e.Send(protocol.Ack, protocol.AckPayload{AckSequence: h.Sequence}, false)
}

// OnAck removes the pending entry for seq. Duplicate or late acks are a no-op.
func (e *Engine) OnAck(seq uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[seq]; !ok {
		return false
	}
	delete(e.pending, seq)
	return true
}

// Tick resends every pending message older than the timeout and returns how
// many were resent.
func (e *Engine) Tick() int {
	e.mu.Lock()

	now := e.now()
	resent := 0
	var gaveUp []uint32
	for seq, p := range e.pending {
		if now.Sub(p.LastSent) <= e.timeout {
			continue
		}
		if e.maxRetries > 0 && p.Retries >= e.maxRetries {
			delete(e.pending, seq)
			gaveUp = append(gaveUp, seq)
			continue
		}

		e.loss++
		p.Retries++
		if _, err := e.conn.WriteTo(p.Data, e.peer); err != nil {
			e.logger.Printf("resend seq=%d to %s failed: %v", seq, e.peer, err)
			continue
		}
		p.LastSent = now
		resent++
	}
	e.mu.Unlock()

	if e.onGiveUp != nil {
		for _, seq := range gaveUp {
			e.onGiveUp(seq)
		}
	}
	return resent
}

// Loss returns the number of retransmissions so far.
func (e *Engine) Loss() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loss
}

// Pending returns how many important messages await an Ack.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// IsPending reports whether seq is still unacknowledged.
func (e *Engine) IsPending(seq uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[seq]
	return ok
}

// LastSequence returns the most recently issued sequence number, 0 before
// the first send.
func (e *Engine) LastSequence() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}
