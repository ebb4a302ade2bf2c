package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ctxManager "github.com/dtroode/flavourmarket/internal/api/http/context"
	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/mocks"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/storage/memory"
	"github.com/dtroode/flavourmarket/internal/testutil"
)

type harness struct {
	registry *Registry
	auth     *mocks.AuthProvider
	store    *memory.SessionStore
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		auth:  &mocks.AuthProvider{},
		store: memory.NewSessionStore(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.registry = NewRegistry(Deps{
		Auth:       h.auth,
		Store:      h.store,
		CtxManager: ctxManager.NewManager(),
		Logger:     testutil.MakeNoopLogger(),
		SessionTTL: time.Hour,
	}, 10*time.Minute)
	h.registry.now = func() time.Time { return h.now }
	t.Cleanup(h.registry.Close)
	return h
}

func TestRegistry_GetRestoresStoredTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Save(ctx, "sid", model.SessionTokens{AccessToken: "access"}, time.Hour))

	c := h.registry.Get(ctx, "sid")
	assert.Equal(t, "access", c.Tokens().AccessToken)
	assert.True(t, c.SignedIn())
	assert.Same(t, c, h.registry.Get(ctx, "sid"))
	assert.Equal(t, 1, h.registry.Len())

	other := h.registry.Get(ctx, "other")
	assert.False(t, other.SignedIn())
	assert.Equal(t, 2, h.registry.Len())
}

func TestContext_IdentityWithoutSession(t *testing.T) {
	h := newHarness(t)
	c := h.registry.Get(context.Background(), "sid")

	assert.Nil(t, c.Identity(context.Background()))
	h.auth.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestContext_IdentityLookedUpOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, h.store.Save(ctx, "sid", model.SessionTokens{AccessToken: "access"}, time.Hour))

	h.auth.On("GetUser", mock.Anything, "access").
		Run(func(mock.Arguments) { time.Sleep(20 * time.Millisecond) }).
		Return(model.Identity{ID: userID, Email: "a@example.com"}, nil).Once()

	c := h.registry.Get(ctx, "sid")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity := c.Identity(ctx)
			assert.NotNil(t, identity)
		}()
	}
	wg.Wait()

	identity, loading := c.Session.Identity()
	require.NotNil(t, identity)
	assert.False(t, loading)
	assert.Equal(t, userID, identity.ID)
	h.auth.AssertNumberOfCalls(t, "GetUser", 1)
}

func TestContext_IdentityLookupFailureResolvesToNoIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Save(ctx, "sid", model.SessionTokens{AccessToken: "access"}, time.Hour))
	h.auth.On("GetUser", mock.Anything, "access").Return(model.Identity{}, errors.New("bad gateway"))

	c := h.registry.Get(ctx, "sid")
	assert.Nil(t, c.Identity(ctx))
}

func TestContext_AuthorizeRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, h.store.Save(ctx, "sid", model.SessionTokens{
		AccessToken:  "old",
		RefreshToken: "refresh",
		ExpiresAt:    h.now.Add(10 * time.Second),
	}, time.Hour))

	h.auth.On("Refresh", mock.Anything, "refresh").Return(model.AuthSession{
		AccessToken:  "new",
		RefreshToken: "refresh2",
		ExpiresAt:    h.now.Add(time.Hour),
		User:         model.Identity{ID: userID},
	}, nil).Once()

	c := h.registry.Get(ctx, "sid")
	authorized, err := c.Authorize(ctx)
	require.NoError(t, err)

	token, ok := ctxManager.NewManager().GetAccessTokenFromContext(authorized)
	require.True(t, ok)
	assert.Equal(t, "new", token)

	stored, err := h.store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "refresh2", stored.RefreshToken)

	// the refresh pushed the identity, so no lookup is needed
	identity := c.Identity(ctx)
	require.NotNil(t, identity)
	assert.Equal(t, userID, identity.ID)
	h.auth.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)

	_, err = c.Authorize(ctx)
	require.NoError(t, err)
	h.auth.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestContext_RejectedRefreshSignsOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Save(ctx, "sid", model.SessionTokens{
		AccessToken:  "old",
		RefreshToken: "refresh",
		ExpiresAt:    h.now.Add(-time.Minute),
	}, time.Hour))
	h.auth.On("Refresh", mock.Anything, "refresh").Return(model.AuthSession{}, model.ErrInvalidCredentials)

	c := h.registry.Get(ctx, "sid")
	_, err := c.Authorize(ctx)
	require.ErrorIs(t, err, model.ErrSessionExpired)

	assert.False(t, c.SignedIn())
	_, err = h.store.Get(ctx, "sid")
	assert.ErrorIs(t, err, model.ErrNotFound)

	identity, loading := c.Session.Identity()
	assert.Nil(t, identity)
	assert.True(t, loading)
	assert.Nil(t, c.Identity(ctx))
}

func TestContext_SignInAndOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	c := h.registry.Get(ctx, "sid")
	assert.Nil(t, c.Identity(ctx))

	require.NoError(t, c.SignIn(ctx, model.AuthSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         model.Identity{ID: userID, FirstName: "Ada"},
	}))

	identity, _ := c.Session.Identity()
	require.NotNil(t, identity)
	assert.Equal(t, "Ada", identity.FirstName)

	stored, err := h.store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "access", stored.AccessToken)

	c.Queries.SetData(cache.BalanceKey(userID), func(any) any { return "balance" })
	c.Queries.SetData(cache.ListingsKey(model.CategoryFruity), func(any) any { return []model.Listing{{ID: 1}} })
	c.WatchBalance(userID, func(context.Context) (any, error) { return "balance", nil })
	assert.Equal(t, 1, c.Queries.Subscribers(cache.BalanceKey(userID)))

	token, err := c.SignOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", token)

	identity, _ = c.Session.Identity()
	assert.Nil(t, identity)
	assert.False(t, c.SignedIn())
	assert.Equal(t, 0, c.Queries.Subscribers(cache.BalanceKey(userID)))
	assert.False(t, c.Queries.Get(cache.BalanceKey(userID)).Settled())
	assert.True(t, c.Queries.Get(cache.ListingsKey(model.CategoryFruity)).Settled())

	_, err = h.store.Get(ctx, "sid")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestContext_WatchBalanceReplacesSubscription(t *testing.T) {
	h := newHarness(t)
	c := h.registry.Get(context.Background(), "sid")
	first, second := uuid.New(), uuid.New()
	loader := func(context.Context) (any, error) { return nil, nil }

	c.WatchBalance(first, loader)
	c.WatchBalance(first, loader)
	assert.Equal(t, 1, c.Queries.Subscribers(cache.BalanceKey(first)))

	c.WatchBalance(second, loader)
	assert.Equal(t, 0, c.Queries.Subscribers(cache.BalanceKey(first)))
	assert.Equal(t, 1, c.Queries.Subscribers(cache.BalanceKey(second)))
}

func TestRegistry_SweepEvictsIdleContexts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	idle := h.registry.Get(ctx, "idle")
	require.NoError(t, idle.SignIn(ctx, model.AuthSession{AccessToken: "access"}))

	h.now = h.now.Add(9 * time.Minute)
	h.registry.Get(ctx, "active")
	assert.Equal(t, 0, h.registry.Sweep())

	h.now = h.now.Add(2 * time.Minute)
	assert.Equal(t, 1, h.registry.Sweep())
	assert.Equal(t, 1, h.registry.Len())

	// stored tokens survive eviction
	restored := h.registry.Get(ctx, "idle")
	assert.NotSame(t, idle, restored)
	assert.Equal(t, "access", restored.Tokens().AccessToken)
}

func TestForms_Begin(t *testing.T) {
	f := NewForms()

	end, err := f.Begin("deposit")
	require.NoError(t, err)
	assert.True(t, f.Submitting("deposit"))

	_, err = f.Begin("deposit")
	assert.ErrorIs(t, err, ErrInFlight)

	other, err := f.Begin("sell")
	require.NoError(t, err)
	other()

	end()
	end()
	assert.False(t, f.Submitting("deposit"))

	_, err = f.Begin("deposit")
	assert.NoError(t, err)
}
