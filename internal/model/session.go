package model

import (
	"context"
	"time"
)

// SessionStore persists backend tokens per browser session.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, tokens SessionTokens, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (SessionTokens, error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionTokens are the stored backend tokens of one browser session.
type SessionTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is expired at now, allowing for leeway.
func (t SessionTokens) Expired(now time.Time, leeway time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(t.ExpiresAt)
}

// TokensFromAuth extracts storable tokens from an auth session.
func TokensFromAuth(s AuthSession) SessionTokens {
	return SessionTokens{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}
