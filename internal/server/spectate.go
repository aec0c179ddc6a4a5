package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"netarcade/internal/protocol"
)

const (
	spectatorBuffer = 64
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // spectators are read-only
	},
}

// Frame is what spectators receive, as JSON text or msgpack binary.
type Frame struct {
	Type  string      `json:"type" msgpack:"type"`
	Lobby *LobbyFrame `json:"lobby,omitempty" msgpack:"lobby,omitempty"`
	State *StateFrame `json:"state,omitempty" msgpack:"state,omitempty"`
}

type LobbyFrame struct {
	Total   int    `json:"total" msgpack:"total"`
	Ready   int    `json:"ready" msgpack:"ready"`
	Started bool   `json:"started" msgpack:"started"`
	MatchID string `json:"matchId,omitempty" msgpack:"matchId,omitempty"`
}

type StateFrame struct {
	Players []protocol.PlayerState `json:"players" msgpack:"players"`
	Enemies []protocol.EnemyState  `json:"enemies" msgpack:"enemies"`
	Bullets []protocol.BulletState `json:"bullets" msgpack:"bullets"`
}

func lobbyFrame(total, ready int, started bool, matchID uuid.UUID) Frame {
	lf := &LobbyFrame{Total: total, Ready: ready, Started: started}
	if matchID != uuid.Nil {
		lf.MatchID = matchID.String()
	}
	return Frame{Type: "lobby", Lobby: lf}
}

func stateFrame(gs *protocol.GameStatePayload) Frame {
	return Frame{Type: "state", State: &StateFrame{
		Players: append([]protocol.PlayerState{}, gs.PlayerList()...),
		Enemies: append([]protocol.EnemyState{}, gs.EnemyList()...),
		Bullets: append([]protocol.BulletState{}, gs.BulletList()...),
	}}
}

type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) messageType() int {
	if f == FormatMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (f Format) encode(v any) ([]byte, error) {
	if f == FormatMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Spectator is one websocket watching the match.
type Spectator struct {
	ID     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	format Format
	hub    *Hub
}

// Hub fans frames out to spectators.
type Hub struct {
	mu         sync.Mutex
	spectators map[*Spectator]struct{}
	closed     bool
	logger     *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{spectators: make(map[*Spectator]struct{}), logger: logger}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.spectators)
}

func (h *Hub) register(sp *Spectator) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.spectators[sp] = struct{}{}
	return true
}

func (h *Hub) unregister(sp *Spectator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.spectators[sp]; ok {
		delete(h.spectators, sp)
		close(sp.send)
	}
}

// Publish encodes f once per format in use and queues it on every
// spectator. A spectator whose buffer is full, or whose format failed to
// encode f, misses the frame.
func (h *Hub) Publish(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.spectators) == 0 {
		return
	}
	encoded := make(map[Format][]byte, 2)
	for sp := range h.spectators {
		data, ok := encoded[sp.format]
		if !ok {
			var err error
			data, err = sp.format.encode(f)
			if err != nil {
				h.logger.Printf("Error encoding %s frame: %v", f.Type, err)
			}
			encoded[sp.format] = data
		}
		if data == nil {
			continue
		}
		select {
		case sp.send <- data:
		default:
			h.logger.Printf("Send buffer full for spectator %s", sp.ID)
		}
	}
}

// Close disconnects every spectator and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sp := range h.spectators {
		delete(h.spectators, sp)
		close(sp.send)
	}
}

func (sp *Spectator) readPump() {
	defer func() {
		sp.hub.unregister(sp)
		sp.conn.Close()
	}()

	sp.conn.SetReadDeadline(time.Now().Add(pongWait))
	sp.conn.SetPongHandler(func(string) error {
		sp.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sp.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sp.hub.logger.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (sp *Spectator) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sp.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sp.send:
			sp.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sp.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sp.conn.WriteMessage(sp.format.messageType(), message); err != nil {
				return
			}

		case <-ticker.C:
			sp.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sp.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	format := FormatJSON
	if r.URL.Query().Get("format") == "msgpack" {
		format = FormatMsgpack
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sp := &Spectator{
		ID:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, spectatorBuffer),
		format: format,
		hub:    s.hub,
	}
	if !s.hub.register(sp) {
		conn.Close()
		return
	}
	go sp.writePump()
	go sp.readPump()

	s.logger.Printf("Spectator %s connected", sp.ID)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}

// Handler serves the spectator surface. With auth enabled, /api/login
// issues the session cookie the other routes require.
func (s *Server) Handler(auth *Auth) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", auth.Require(s.handleStatus))
	mux.HandleFunc("/ws", auth.Require(s.handleWebSocket))
	if auth.Enabled() {
		mux.HandleFunc("/api/login", auth.HandleLogin)
	}
	return mux
}
