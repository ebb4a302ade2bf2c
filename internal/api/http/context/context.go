package context

import (
	"context"

	"github.com/dtroode/flavourmarket/internal/model"
)

type ctxKey int

const (
	accessTokenKey ctxKey = iota
	clientKey
)

// Manager carries request-scoped values for the web handlers and the backend clients.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetAccessTokenToContext stores the caller's backend access token.
func (m *Manager) SetAccessTokenToContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

// GetAccessTokenFromContext returns the caller's backend access token.
func (m *Manager) GetAccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// SetClientToContext stores the per-browser client context resolved by the session middleware.
func (m *Manager) SetClientToContext(ctx context.Context, client any) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// GetClientFromContext returns the value stored by SetClientToContext.
func (m *Manager) GetClientFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(clientKey)
	return v, v != nil
}
