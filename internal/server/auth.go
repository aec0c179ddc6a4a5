package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	SessionDuration = 1 * time.Hour
	sessionCookie   = "session"
)

var (
	ErrBadPassword = errors.New("invalid credentials")
	ErrEmptyName   = errors.New("username cannot be empty")
)

type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (ss *SessionStore) CreateSession(name string) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	session := &Session{
		ID:        id.String(),
		Name:      name,
		CreatedAt: ss.now(),
	}
	ss.sessions[session.ID] = session
	return session, nil
}

func (ss *SessionStore) GetSession(id string) (*Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	session, exists := ss.sessions[id]
	if !exists {
		return nil, false
	}
	if ss.now().Sub(session.CreatedAt) > SessionDuration {
		return nil, false
	}
	return session, true
}

func (ss *SessionStore) DeleteSession(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Cleanup drops expired sessions and returns how many it removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	now := ss.now()
	for id, session := range ss.sessions {
		if now.Sub(session.CreatedAt) > SessionDuration {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every five minutes until ctx is done.
func (ss *SessionStore) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ss.Cleanup()
		}
	}
}

// Auth guards the spectator surface with a shared password. A nil Auth or
// an empty password leaves everything open.
type Auth struct {
	password string
	sessions *SessionStore
}

func NewAuth(password string, sessions *SessionStore) *Auth {
	return &Auth{password: password, sessions: sessions}
}

func (a *Auth) Enabled() bool {
	return a != nil && a.password != ""
}

func (a *Auth) Authenticate(name, password string) error {
	if password != a.password {
		return ErrBadPassword
	}
	if name == "" {
		return ErrEmptyName
	}
	return nil
}

// Require wraps h so it only runs for requests carrying a live session.
func (a *Auth) Require(h http.HandlerFunc) http.HandlerFunc {
	if !a.Enabled() {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, ok := a.sessions.GetSession(cookie.Value); !ok {
			http.Error(w, "Session expired", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	switch err := a.Authenticate(req.Username, req.Password); {
	case errors.Is(err, ErrBadPassword):
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := a.sessions.CreateSession(req.Username)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(SessionDuration.Seconds()),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"session": session.ID,
	})
}
