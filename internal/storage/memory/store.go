package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/flavourmarket/internal/model"
)

var _ model.SessionStore = (*SessionStore)(nil)

type entry struct {
	tokens    model.SessionTokens
	expiresAt time.Time
}

// SessionStore keeps backend tokens in process memory. Sessions are lost on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (s *SessionStore) Save(_ context.Context, sessionID string, tokens model.SessionTokens, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{tokens: tokens}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.sessions[sessionID] = e
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (model.SessionTokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionTokens{}, model.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.sessions, sessionID)
		return model.SessionTokens{}, model.ErrNotFound
	}
	return e.tokens, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
