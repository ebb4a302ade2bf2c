package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenManager issues and validates session cookie tokens and reads backend access token claims.
type TokenManager interface {
	IssueSessionToken(sessionID string, ttl time.Duration) (string, error)
	ParseSessionToken(token string) (string, error)
	ParseAccessToken(token string) (AccessClaims, error)
}

// AccessClaims are the claims of a backend access token used by this application.
type AccessClaims struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	ExpiresAt time.Time
}
