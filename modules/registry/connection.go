package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/google/uuid"
)

// Delivery errors. Both wrap domain.ErrTransport.
var (
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", domain.ErrTransport)
	ErrDeliverTimeout   = fmt.Errorf("%w: delivery timed out", domain.ErrTransport)
)

// DefaultOutboundBuffer is the number of events a connection can queue
// before deliveries start to block.
const DefaultOutboundBuffer = 64

// Connection is one live client session. The transport layer drains
// Outbound and tears the socket down when Done is closed.
type Connection struct {
	id     string
	userID int64

	out       chan domain.Event
	done      chan struct{}
	closeOnce sync.Once

	// guarded by the registry shard owning id
	rooms map[int64]struct{}
}

// NewConnection creates a connection for an authenticated user.
func NewConnection(userID int64, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultOutboundBuffer
	}
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		out:    make(chan domain.Event, buffer),
		done:   make(chan struct{}),
		rooms:  make(map[int64]struct{}),
	}
}

// ID returns the opaque connection handle.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the authenticated user behind the connection.
func (c *Connection) UserID() int64 {
	return c.userID
}

// Outbound returns the queue of events awaiting transmission.
func (c *Connection) Outbound() <-chan domain.Event {
	return c.out
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close marks the connection closed. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Deliver queues ev for transmission. It gives up after timeout, when the
// connection closes or when ctx is done.
func (c *Connection) Deliver(ctx context.Context, ev domain.Event, timeout time.Duration) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	// fast path when the buffer has room
	select {
	case c.out <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.out <- ev:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrDeliverTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
