package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ctxManager "github.com/dtroode/flavourmarket/internal/api/http/context"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/mocks"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/storage/memory"
	"github.com/dtroode/flavourmarket/internal/testutil"
)

func newRegistry(t *testing.T, auth model.AuthProvider) *client.Registry {
	t.Helper()
	if auth == nil {
		auth = &mocks.AuthProvider{}
	}
	r := client.NewRegistry(client.Deps{
		Auth:       auth,
		Store:      memory.NewSessionStore(),
		CtxManager: ctxManager.NewManager(),
		Logger:     testutil.MakeNoopLogger(),
		SessionTTL: time.Hour,
	}, time.Hour)
	t.Cleanup(r.Close)
	return r
}

// signedInClient returns a client context signed in as a fresh user.
func signedInClient(t *testing.T) (*client.Context, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	cc := newRegistry(t, nil).Get(context.Background(), uuid.NewString())
	require.NoError(t, cc.SignIn(context.Background(), model.AuthSession{
		AccessToken: "access-" + userID.String(),
		User:        model.Identity{ID: userID, Email: "user@example.com"},
	}))
	return cc, userID
}

// hasAccessToken matches contexts carrying the client's access token.
func hasAccessToken(cc *client.Context) func(ctx context.Context) bool {
	m := ctxManager.NewManager()
	return func(ctx context.Context) bool {
		token, ok := m.GetAccessTokenFromContext(ctx)
		return ok && token == cc.Tokens().AccessToken
	}
}
