package session

import (
	"context"
	"sync"

	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

// IdentityLoader resolves the identity behind the stored session token.
// A nil identity means there is no session.
type IdentityLoader func(ctx context.Context) (*model.Identity, error)

// Cache holds the current identity of one client context.
type Cache struct {
	mu       sync.RWMutex
	identity *model.Identity
	loading  bool
	pushes   int

	loadOnce sync.Once
	loader   IdentityLoader

	channel *Channel
	done    chan struct{}
	logger  *logger.Logger
}

// NewCache creates a cache in the loading state and starts its receive loop on channel.
func NewCache(loader IdentityLoader, channel *Channel, logger *logger.Logger) *Cache {
	c := &Cache{
		loading: true,
		loader:  loader,
		channel: channel,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go c.receive()
	return c
}

// Identity returns a copy of the current identity and whether the first lookup is still pending.
func (c *Cache) Identity() (*model.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyIdentity(c.identity), c.loading
}

// Load performs the first lookup exactly once; concurrent callers wait for it.
// A failed lookup resolves to no identity.
func (c *Cache) Load(ctx context.Context) *model.Identity {
	c.loadOnce.Do(func() {
		c.mu.RLock()
		pushed := c.pushes > 0
		c.mu.RUnlock()

		var identity *model.Identity
		if !pushed {
			var err error
			identity, err = c.loader(ctx)
			if err != nil {
				c.logger.Warn("Session: identity lookup failed", "error", err)
				identity = nil
			}
		}

		c.mu.Lock()
		// a push that arrived during the lookup is newer than the lookup
		if c.pushes == 0 {
			c.identity = identity
		}
		c.loading = false
		c.mu.Unlock()
	})

	identity, _ := c.Identity()
	return identity
}

// Close unsubscribes from the channel and waits for the receive loop to exit.
func (c *Cache) Close() {
	c.channel.Close()
	<-c.done
}

func (c *Cache) receive() {
	defer close(c.done)
	for {
		select {
		case <-c.channel.closed:
			return
		case msg := <-c.channel.messages:
			c.apply(msg.event)
			close(msg.ack)
		}
	}
}

func (c *Cache) apply(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case SignedOut:
		c.identity = nil
	default:
		c.identity = copyIdentity(ev.Identity)
	}
	c.pushes++
	c.logger.Debug("Session: auth state changed", "event", ev.Kind.String(), "signed_in", c.identity != nil)
}

func copyIdentity(identity *model.Identity) *model.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
