package model

import "context"

// ContextManager carries the caller's backend access token through request contexts.
type ContextManager interface {
	SetAccessTokenToContext(ctx context.Context, token string) context.Context
	GetAccessTokenFromContext(ctx context.Context) (string, bool)
}
