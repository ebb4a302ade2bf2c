package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/flavourmarket/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Loader performs the remote call behind a key.
type Loader func(ctx context.Context) (any, error)

// Metrics observes cache activity.
type Metrics interface {
	ObserveLoad(query string, shared bool, duration time.Duration, err error)
	ObserveInvalidate(query string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveLoad(string, bool, time.Duration, error) {}
func (nopMetrics) ObserveInvalidate(string) {}

type entry struct {
	Entry
	loader Loader
	// gen changes on every invalidation or direct write. A load only settles the
	// entry when gen is unchanged since the load started.
	gen uint64
}

type subscriber struct {
	ch chan Entry
}

// Cache is a keyed, request-deduplicating query cache owned by one client context.
type Cache struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	subscribers map[Key]map[*subscriber]struct{}
	group       singleflight.Group
	background  sync.WaitGroup

	staleTime time.Duration
	now       func() time.Time
	baseCtx   func() context.Context
	metrics   Metrics
	logger    *logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime makes entries older than d stale on the next Fetch. Zero disables time-based staleness.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithBaseContext sets the context factory for background refetches.
func WithBaseContext(fn func() context.Context) Option {
	return func(c *Cache) { c.baseCtx = fn }
}

// WithMetrics attaches a metrics observer.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[Key]*entry),
		subscribers: make(map[Key]map[*subscriber]struct{}),
		now:         time.Now,
		baseCtx:     context.Background,
		metrics:     nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fetchOptions struct {
	force bool
}

// FetchOption modifies a single Fetch call.
type FetchOption func(*fetchOptions)

// Force loads the key even when a fresh entry exists.
func Force() FetchOption {
	return func(o *fetchOptions) { o.force = true }
}

// Fetch returns the cached data for key, loading it when there is no entry,
// the entry is stale or errored, or Force is given. Concurrent fetches of one key share a single load.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader, opts ...FetchOption) (any, error) {
	o := fetchOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !o.force && !c.needsLoad(e) {
		data, err := e.Data, e.Err
		c.mu.Unlock()
		return data, err
	}
	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		c.entries[key] = e
	}
	e.loader = loader
	e.IsLoading = true
	c.mu.Unlock()

	return c.load(ctx, key, loader)
}

func (c *Cache) needsLoad(e *entry) bool {
	if !e.settled || e.IsStale || e.Err != nil {
		return true
	}
	return c.staleTime > 0 && c.now().Sub(e.UpdatedAt) > c.staleTime
}

func (c *Cache) load(ctx context.Context, key Key, loader Loader) (any, error) {
	start := c.now()
	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		gen := c.generation(key)
		// Shared by every waiter on key, so one caller going away must not cancel it.
		data, err := loader(context.WithoutCancel(ctx))
		c.store(key, gen, data, err)
		return data, err
	})
	c.metrics.ObserveLoad(key.Root(), shared, c.now().Sub(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v, nil
}

func (c *Cache) generation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.gen
	}
	return 0
}

func (c *Cache) store(key Key, gen uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		// Removed while loading.
		return
	}
	if e.gen != gen {
		// Invalidated or rewritten while loading: the result predates the newer state.
		// An invalidation with subscribers has its own refetch running.
		e.IsLoading = e.IsStale && len(c.subscribers[key]) > 0 && e.loader != nil
		return
	}
	if err == nil {
		e.Data = data
	}
	e.Err = err
	e.IsLoading = false
	e.IsStale = false
	e.settled = true
	e.UpdatedAt = c.now()

	c.notifyLocked(key, e.Entry)
}

// Get returns a snapshot of the entry for key.
func (c *Cache) Get(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{Key: key}
	}
	return e.Entry
}

// Subscribe registers an active subscriber for key. The loader is used for background
// refetches after Invalidate. The channel always holds the latest entry; cancel unsubscribes.
func (c *Cache) Subscribe(key Key, loader Loader) (<-chan Entry, func()) {
	sub := &subscriber{ch: make(chan Entry, 1)}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		c.entries[key] = e
	}
	if loader != nil {
		e.loader = loader
	}
	if c.subscribers[key] == nil {
		c.subscribers[key] = make(map[*subscriber]struct{})
	}
	c.subscribers[key][sub] = struct{}{}
	if e.settled {
		sub.ch <- e.Entry
	}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers[key], sub)
			if len(c.subscribers[key]) == 0 {
				delete(c.subscribers, key)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of active subscribers for key.
func (c *Cache) Subscribers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers[key])
}

// Invalidate marks the entries stale. Keys with active subscribers are refetched in the
// background and keep serving their previous data until the refetch settles.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		c.invalidateLocked(key)
	}
}

// InvalidatePrefix invalidates every entry whose key starts with prefix.
func (c *Cache) InvalidatePrefix(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.HasPrefix(prefix) {
			c.invalidateLocked(key)
		}
	}
}

func (c *Cache) invalidateLocked(key Key) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.IsStale = true
	e.gen++
	c.group.Forget(key.String())
	c.metrics.ObserveInvalidate(key.Root())

	if len(c.subscribers[key]) == 0 || e.loader == nil {
		return
	}

	e.IsLoading = true
	c.notifyLocked(key, e.Entry)

	loader := e.loader
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if _, err := c.load(c.baseCtx(), key, loader); err != nil && c.logger != nil {
			c.logger.Warn("Cache: background refetch failed", "key", key.String(), "error", err)
		}
	}()
}

// SetData writes the updater's result under key without a remote call.
// Subscribers have been notified when SetData returns.
func (c *Cache) SetData(key Key, updater func(old any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		c.entries[key] = e
	}
	e.Data = updater(e.Data)
	e.gen++
	e.Err = nil
	e.IsStale = false
	e.settled = true
	e.UpdatedAt = c.now()

	c.notifyLocked(key, e.Entry)
}

// Remove drops every entry whose key starts with prefix. Subscriptions are kept.
func (c *Cache) Remove(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.HasPrefix(prefix) && len(c.subscribers[key]) == 0 {
			delete(c.entries, key)
		}
	}
}

// Wait blocks until every background refetch started so far has settled.
func (c *Cache) Wait() {
	c.background.Wait()
}

func (c *Cache) notifyLocked(key Key, snapshot Entry) {
	for sub := range c.subscribers[key] {
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// Fetch is the typed form of Cache.Fetch.
func Fetch[T any](ctx context.Context, c *Cache, key Key, loader func(ctx context.Context) (T, error), opts ...FetchOption) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return loader(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for %s has type %T", key, v)
	}
	return t, nil
}

// Read returns the typed data cached under key, if any.
func Read[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e := c.Get(key)
	if !e.settled || e.Data == nil {
		return zero, false
	}
	t, ok := e.Data.(T)
	return t, ok
}
