package reliable

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"netarcade/internal/protocol"
)

type recordingConn struct {
	mu      sync.Mutex
	packets [][]byte
	fail    bool
}

func (c *recordingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("network unreachable")
	}
	c.packets = append(c.packets, bytes.Clone(p))
	return len(p), nil
}

func (c *recordingConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packets
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var peer = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}

func newTestEngine(conn Writer, clock *fakeClock, opts ...Option) *Engine {
	base := []Option{
		WithClock(clock.Now),
		WithLogger(log.New(io.Discard, "", 0)),
	}
	return New(conn, peer, append(base, opts...)...)
}

func TestSequenceStartsAtOneAndIncreases(t *testing.T) {
	conn := &recordingConn{}
	e := newTestEngine(conn, &fakeClock{t: time.Unix(0, 0)})

	for i := 0; i < 5; i++ {
		if !e.Send(protocol.Ping, protocol.PingPayload{PingSequence: uint32(i)}, i%2 == 0) {
			t.Fatalf("send %d failed", i)
		}
	}

	var prev uint32
	for i, pkt := range conn.sent() {
		h, _, err := protocol.Decode(pkt)
		if err != nil {
			t.Fatalf("decode packet %d: %v", i, err)
		}
		if i == 0 && h.Sequence != 1 {
			t.Errorf("first sequence = %d, want 1", h.Sequence)
		}
		if h.Sequence <= prev {
			t.Errorf("sequence %d not greater than %d", h.Sequence, prev)
		}
		prev = h.Sequence
	}
	if e.LastSequence() != 5 {
		t.Errorf("LastSequence = %d, want 5", e.LastSequence())
	}
}

func TestImportantMessageIsRetransmittedVerbatim(t *testing.T) {
	conn := &recordingConn{}
	clock := &fakeClock{t: time.Unix(100, 0)}
	e := newTestEngine(conn, clock)

	e.Send(protocol.Ready, nil, true)
	if e.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", e.Pending())
	}

	clock.Advance(50 * time.Millisecond)
	if n := e.Tick(); n != 0 {
		t.Fatalf("resent %d before timeout", n)
	}

	clock.Advance(60 * time.Millisecond)
	if n := e.Tick(); n != 1 {
		t.Fatalf("resent %d after timeout, want 1", n)
	}

	sent := conn.sent()
	if len(sent) != 2 {
		t.Fatalf("got %d packets, want 2", len(sent))
	}
	if !bytes.Equal(sent[0], sent[1]) {
		t.Errorf("retransmission differs:\n% x\n% x", sent[0], sent[1])
	}
	if e.Loss() != 1 {
		t.Errorf("Loss = %d, want 1", e.Loss())
	}
}

func TestLossCountsEveryRetransmission(t *testing.T) {
	conn := &recordingConn{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	e := newTestEngine(conn, clock)

	e.Send(protocol.Ready, nil, true)
	for i := 0; i < 3; i++ {
		clock.Advance(101 * time.Millisecond)
		e.Tick()
	}
	if e.Loss() != 3 {
		t.Errorf("Loss = %d, want 3", e.Loss())
	}
	if e.Pending() != 1 {
		t.Errorf("unbounded retransmission dropped the entry")
	}
}

func TestUnimportantMessagesAreNotTracked(t *testing.T) {
	conn := &recordingConn{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	e := newTestEngine(conn, clock)

	e.Send(protocol.PlayerInput, protocol.PlayerInputPayload{NetID: 1}, false)
	clock.Advance(time.Second)
	if n := e.Tick(); n != 0 {
		t.Errorf("resent %d unimportant packets", n)
	}
	if e.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", e.Pending())
	}
}

func TestOnAckRemovesOnlyThatEntry(t *testing.T) {
	conn := &recordingConn{}
	e := newTestEngine(conn, &fakeClock{t: time.Unix(0, 0)})

	e.Send(protocol.Ready, nil, true) // seq 1
	e.Send(protocol.Ready, nil, true) // seq 2
	e.Send(protocol.Ready, nil, true) // seq 3

	if !e.OnAck(2) {
		t.Fatal("OnAck(2) = false, want true")
	}
	if e.IsPending(2) {
		t.Error("seq 2 still pending")
	}
	if !e.IsPending(1) || !e.IsPending(3) {
		t.Error("ack removed other entries")
	}

	if e.OnAck(2) {
		t.Error("duplicate ack reported as removal")
	}
	if e.OnAck(77) {
		t.Error("unknown ack reported as removal")
	}
	if e.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", e.Pending())
	}
}

func TestAckIfImportant(t *testing.T) {
	conn := &recordingConn{}
	e := newTestEngine(conn, &fakeClock{t: time.Unix(0, 0)})

	if e.AckIfImportant(protocol.Header{Type: protocol.GameState, Sequence: 9}) {
		t.Fatal("acked an unimportant message")
	}
	if !e.AckIfImportant(protocol.Header{Type: protocol.Start, Sequence: 9, Flags: protocol.FlagImportant}) {
		t.Fatal("did not ack an important message")
	}

	sent := conn.sent()
	if len(sent) != 1 {
		t.Fatalf("got %d packets, want 1", len(sent))
	}
	h, body, err := protocol.Decode(sent[0])
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	var ack protocol.AckPayload
	if err := ack.UnmarshalBinary(body); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if h.Type != protocol.Ack || h.Important() || ack.AckSequence != 9 {
		t.Errorf("ack = %+v %+v", h, ack)
	}
}

func TestSendFailureReportsFalseButKeepsImportant(t *testing.T) {
	conn := &recordingConn{fail: true}
	clock := &fakeClock{t: time.Unix(0, 0)}
	e := newTestEngine(conn, clock)

	if e.Send(protocol.Ready, nil, true) {
		t.Fatal("Send reported success on a failing socket")
	}
	if e.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", e.Pending())
	}

	conn.mu.Lock()
	conn.fail = false
	conn.mu.Unlock()
	clock.Advance(200 * time.Millisecond)
	if n := e.Tick(); n != 1 {
		t.Errorf("resent %d, want 1", n)
	}
}

func TestMaxRetriesGivesUp(t *testing.T) {
	conn := &recordingConn{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	var gaveUp []uint32
	e := newTestEngine(conn, clock,
		WithMaxRetries(2),
		WithGiveUp(func(seq uint32) { gaveUp = append(gaveUp, seq) }),
	)

	e.Send(protocol.Ready, nil, true)
	for i := 0; i < 4; i++ {
		clock.Advance(150 * time.Millisecond)
		e.Tick()
	}

	if e.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", e.Pending())
	}
	if len(gaveUp) != 1 || gaveUp[0] != 1 {
		t.Errorf("gave up on %v, want [1]", gaveUp)
	}
	if e.Loss() != 2 {
		t.Errorf("Loss = %d, want 2", e.Loss())
	}
	if got := len(conn.sent()); got != 3 {
		t.Errorf("sent %d packets, want 3", got)
	}
}

func TestEngineOverLoopback(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()
	send, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer send.Close()

	e := New(send, recv.LocalAddr(), WithLogger(log.New(io.Discard, "", 0)))
	if !e.Send(protocol.LobbyStatus, protocol.LobbyStatusPayload{TotalClients: 3, ReadyClients: 2}, false) {
		t.Fatal("send failed")
	}

	buf := make([]byte, 2048)
	recv.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := recv.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	h, body, err := protocol.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var ls protocol.LobbyStatusPayload
	if err := ls.UnmarshalBinary(body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Type != protocol.LobbyStatus || ls.TotalClients != 3 || ls.ReadyClients != 2 {
		t.Errorf("got %+v %+v", h, ls)
	}
}
