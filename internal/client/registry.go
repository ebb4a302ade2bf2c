package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

// Metrics observes the query caches and the number of live client contexts.
type Metrics interface {
	cache.Metrics
	SetClientContexts(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveLoad(string, bool, time.Duration, error) {}
func (nopMetrics) ObserveInvalidate(string) {}
func (nopMetrics) SetClientContexts(int) {}

// Deps are shared by every client context.
type Deps struct {
	Auth       model.AuthProvider
	Store      model.SessionStore
	CtxManager model.ContextManager
	Metrics    Metrics
	Logger     *logger.Logger
	StaleTime  time.Duration
	SessionTTL time.Duration
}

// Registry owns the client contexts keyed by browser session ID.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	deps     Deps
	idle     time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry evicting contexts idle for longer than idle.
func NewRegistry(deps Deps, idle time.Duration) *Registry {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	return &Registry{
		contexts: make(map[string]*Context),
		deps:     deps,
		idle:     idle,
		now:      time.Now,
	}
}

// Get returns the context of session id, restoring its stored tokens on first use.
func (r *Registry) Get(ctx context.Context, id string) *Context {
	r.mu.Lock()
	if c, ok := r.contexts[id]; ok {
		r.mu.Unlock()
		c.touch()
		return c
	}
	r.mu.Unlock()

	tokens, err := r.deps.Store.Get(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		r.deps.Logger.Warn("Client: failed to restore session", "session", id, "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent request may have created it meanwhile
	if c, ok := r.contexts[id]; ok {
		c.touch()
		return c
	}
	c := newContext(id, tokens, r.deps, r.now)
	r.contexts[id] = c
	r.deps.Metrics.SetClientContexts(len(r.contexts))
	r.deps.Logger.Debug("Client: context created", "session", id, "restored", tokens.AccessToken != "")
	return c
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Sweep closes contexts idle for longer than the idle timeout and returns how many were evicted.
// Stored tokens are kept so the browser resumes its session on the next request.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var evicted []*Context
	for id, c := range r.contexts {
		if c.idleFor() > r.idle {
			evicted = append(evicted, c)
			delete(r.contexts, id)
		}
	}
	r.deps.Metrics.SetClientContexts(len(r.contexts))
	r.mu.Unlock()

	for _, c := range evicted {
		c.Close()
	}
	if len(evicted) > 0 {
		r.deps.Logger.Debug("Client: evicted idle contexts", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes every context.
func (r *Registry) Close() {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[string]*Context)
	r.mu.Unlock()

	for _, c := range contexts {
		c.Close()
	}
}
