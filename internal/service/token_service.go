package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/flavourmarket/internal/model"
)

// TokenService issues and reads the signed browser session cookie. The cookie carries only
// the session ID; backend tokens stay on the server.
type TokenService struct {
	manager model.TokenManager
	ttl     time.Duration
}

func NewTokenService(manager model.TokenManager, ttl time.Duration) *TokenService {
	return &TokenService{manager: manager, ttl: ttl}
}

// TTL returns how long an issued session cookie is valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue starts a new browser session and returns its ID and cookie value.
func (s *TokenService) Issue() (sessionID string, token string, err error) {
	sessionID = uuid.NewString()
	token, err = s.manager.IssueSessionToken(sessionID, s.ttl)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue session token: %w", err)
	}
	return sessionID, token, nil
}

// SessionID returns the session ID of a cookie value.
func (s *TokenService) SessionID(token string) (string, error) {
	sessionID, err := s.manager.ParseSessionToken(token)
	if err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}
	return sessionID, nil
}
