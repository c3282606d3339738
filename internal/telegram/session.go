package telegram

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is pending user action awaiting confirmation
type Action string

const (
	ActionAccept Action = "accept"
	ActionCancel Action = "cancel"
)

// Session is pending confirmation of a destructive order action
type Session struct {
	ID        string
	UserID    int64
	Action    Action
	OrderCode string
	CreatedAt time.Time
}

// SessionStore keeps pending confirmations with TTL expiry. It replaces the
// usual in-memory "pending action" map so unconfirmed actions cannot pile up
// forever.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
}

// NewSessionStore creates new session store with given TTL
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

// Put registers pending action and returns its session id
func (s *SessionStore) Put(userID int64, action Action, orderCode string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()

	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		OrderCode: orderCode,
		CreatedAt: time.Now(),
	}
	s.sessions[session.ID] = session

	return session.ID
}

// Get returns pending session by id, false when unknown or expired
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}

	if time.Since(session.CreatedAt) > s.ttl {
		delete(s.sessions, id)
		return Session{}, false
	}

	return session, true
}

// Delete removes session by id
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// sweep drops expired sessions, caller must hold the lock
func (s *SessionStore) sweep() {
	for id, session := range s.sessions {
		if time.Since(session.CreatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
