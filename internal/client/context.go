// Package client holds the per-browser state of the storefront: one session
// cache, one query cache, the stored backend tokens and the form guard.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/session"
)

// refreshLeeway refreshes access tokens slightly before they expire.
const refreshLeeway = 30 * time.Second

// userScoped are the query roots bound to the signed-in identity, dropped on sign-out.
var userScoped = []string{
	cache.QueryBalance,
	cache.QueryProfile,
	cache.QueryMyListings,
	cache.QueryRecentActivity,
	cache.QueryRecentTransactions,
	cache.QueryFavouriteFlavours,
}

// Context is the client context of one browser session.
type Context struct {
	ID       string
	Session  *session.Cache
	Queries  *cache.Cache
	Forms    *Forms
	channel  *session.Channel
	deps     Deps
	now      func() time.Time
	lastSeen time.Time

	mu     sync.Mutex
	tokens model.SessionTokens

	// refreshMu serializes token refreshes so a refresh token is exchanged once.
	refreshMu sync.Mutex

	watchMu     sync.Mutex
	watchedUser uuid.UUID
	cancelWatch func()
}

func newContext(id string, tokens model.SessionTokens, deps Deps, now func() time.Time) *Context {
	c := &Context{
		ID:       id,
		Forms:    NewForms(),
		channel:  session.NewChannel(),
		deps:     deps,
		now:      now,
		lastSeen: now(),
		tokens:   tokens,
	}
	c.Queries = cache.New(
		cache.WithStaleTime(deps.StaleTime),
		cache.WithMetrics(deps.Metrics),
		cache.WithLogger(deps.Logger),
		cache.WithClock(now),
	)
	c.Session = session.NewCache(c.lookupIdentity, c.channel, deps.Logger)
	return c
}

// Tokens returns the stored backend tokens.
func (c *Context) Tokens() model.SessionTokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// SignedIn reports whether the context holds an access token.
func (c *Context) SignedIn() bool {
	return c.Tokens().AccessToken != ""
}

// Identity performs the first identity lookup if needed and returns the current identity.
func (c *Context) Identity(ctx context.Context) *model.Identity {
	return c.Session.Load(ctx)
}

func (c *Context) lookupIdentity(ctx context.Context) (*model.Identity, error) {
	ctx, err := c.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	token, ok := c.deps.CtxManager.GetAccessTokenFromContext(ctx)
	if !ok {
		return nil, nil
	}

	identity, err := c.deps.Auth.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &identity, nil
}

// Authorize returns ctx carrying a fresh access token, refreshing it first when it has expired.
// Without a stored session ctx is returned unchanged and calls run anonymously.
func (c *Context) Authorize(ctx context.Context) (context.Context, error) {
	tokens := c.Tokens()
	if tokens.AccessToken == "" {
		return ctx, nil
	}

	if tokens.Expired(c.now(), refreshLeeway) {
		var err error
		tokens, err = c.refresh(ctx)
		if err != nil {
			return ctx, err
		}
	}

	return c.deps.CtxManager.SetAccessTokenToContext(ctx, tokens.AccessToken), nil
}

func (c *Context) refresh(ctx context.Context) (model.SessionTokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// another request may have refreshed while this one waited
	tokens := c.Tokens()
	if tokens.AccessToken != "" && !tokens.Expired(c.now(), refreshLeeway) {
		return tokens, nil
	}
	if tokens.RefreshToken == "" {
		c.expire(ctx)
		return model.SessionTokens{}, model.ErrSessionExpired
	}

	s, err := c.deps.Auth.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) || errors.Is(err, model.ErrUnauthenticated) {
			c.deps.Logger.Info("Client: refresh token rejected, signing out", "session", c.ID)
			c.expire(ctx)
			return model.SessionTokens{}, fmt.Errorf("%w: %w", model.ErrSessionExpired, err)
		}
		return model.SessionTokens{}, fmt.Errorf("failed to refresh session: %w", err)
	}

	tokens = model.TokensFromAuth(s)
	c.setTokens(ctx, tokens)

	user := s.User
	if err := c.channel.Publish(ctx, session.Event{Kind: session.TokenRefreshed, Identity: &user}); err != nil {
		c.deps.Logger.Warn("Client: failed to publish token refresh", "error", err)
	}
	return tokens, nil
}

// SignIn stores the backend session and pushes the new identity to the session cache.
func (c *Context) SignIn(ctx context.Context, s model.AuthSession) error {
	c.setTokens(ctx, model.TokensFromAuth(s))

	user := s.User
	if err := c.channel.Publish(ctx, session.Event{Kind: session.SignedIn, Identity: &user}); err != nil {
		return fmt.Errorf("failed to publish sign in: %w", err)
	}
	return nil
}

// SignOut forgets the backend session, pushes SignedOut and drops user-bound query results.
// It returns the access token that was held so the caller can revoke it remotely.
func (c *Context) SignOut(ctx context.Context) (string, error) {
	token := c.Tokens().AccessToken
	c.clear(ctx)

	if err := c.channel.Publish(ctx, session.Event{Kind: session.SignedOut}); err != nil {
		return token, fmt.Errorf("failed to publish sign out: %w", err)
	}
	return token, nil
}

// UserUpdated pushes a changed identity.
func (c *Context) UserUpdated(ctx context.Context, identity model.Identity) error {
	return c.channel.Publish(ctx, session.Event{Kind: session.UserUpdated, Identity: &identity})
}

func (c *Context) setTokens(ctx context.Context, tokens model.SessionTokens) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()

	if err := c.deps.Store.Save(ctx, c.ID, tokens, c.deps.SessionTTL); err != nil {
		c.deps.Logger.Warn("Client: failed to persist session", "session", c.ID, "error", err)
	}
}

// expire drops a session the backend no longer accepts.
func (c *Context) expire(ctx context.Context) {
	c.clear(ctx)
	if err := c.channel.Publish(ctx, session.Event{Kind: session.SignedOut}); err != nil {
		c.deps.Logger.Warn("Client: failed to publish sign out", "error", err)
	}
}

func (c *Context) clear(ctx context.Context) {
	c.mu.Lock()
	c.tokens = model.SessionTokens{}
	c.mu.Unlock()

	c.unwatch()
	for _, root := range userScoped {
		c.Queries.Remove(cache.NewKey(root))
	}

	if err := c.deps.Store.Delete(ctx, c.ID); err != nil {
		c.deps.Logger.Warn("Client: failed to delete session", "session", c.ID, "error", err)
	}
}

// WatchBalance keeps an active subscription on the user's balance so that invalidations
// refetch it in the background. Watching another user replaces the previous subscription.
func (c *Context) WatchBalance(userID uuid.UUID, loader cache.Loader) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.cancelWatch != nil && c.watchedUser == userID {
		return
	}
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
	_, cancel := c.Queries.Subscribe(cache.BalanceKey(userID), loader)
	c.watchedUser = userID
	c.cancelWatch = cancel
}

func (c *Context) unwatch() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
		c.watchedUser = uuid.Nil
	}
}

func (c *Context) touch() {
	c.mu.Lock()
	c.lastSeen = c.now()
	c.mu.Unlock()
}

func (c *Context) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastSeen)
}

// Close unsubscribes from the auth channel and waits for background refetches.
func (c *Context) Close() {
	c.unwatch()
	c.Session.Close()
	c.Queries.Wait()
}

// Logger returns the logger of the context's dependencies.
func (c *Context) Logger() *logger.Logger {
	return c.deps.Logger
}
