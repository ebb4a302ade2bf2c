package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dtroode/flavourmarket/internal/model"
)

// ErrChannelClosed is returned by Publish after the channel was closed.
var ErrChannelClosed = errors.New("auth channel closed")

// EventKind is the kind of auth state change.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
	TokenRefreshed
	UserUpdated
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case TokenRefreshed:
		return "token_refreshed"
	case UserUpdated:
		return "user_updated"
	default:
		return "unknown"
	}
}

// Event is one auth state change. Identity is nil for SignedOut.
type Event struct {
	Kind     EventKind
	Identity *model.Identity
}

type message struct {
	event Event
	ack   chan struct{}
}

// Channel carries auth state changes to the session cache's receive loop.
type Channel struct {
	messages  chan message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel creates an open channel.
func NewChannel() *Channel {
	return &Channel{
		messages: make(chan message),
		closed:   make(chan struct{}),
	}
}

// Publish delivers ev and returns once the receiver has applied it.
func (c *Channel) Publish(ctx context.Context, ev Event) error {
	msg := message{event: ev, ack: make(chan struct{})}

	select {
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.messages <- msg:
	}

	select {
	case <-msg.ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends the close signal. It is safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
