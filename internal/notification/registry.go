package notification

import (
	"strings"
	"sync"
)

// Connection is one live push stream held open for a recipient. A recipient
// may hold several at once (multiple tabs or devices), each registered under
// its own identifier. Events are queued on a buffered channel drained by the
// subscribe handler; the channel is never closed, termination is signalled
// through done so concurrent senders cannot panic.
type Connection struct {
	id        string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id string, buffer int) *Connection {
	if buffer < 1 {
		buffer = 16
	}
	return &Connection{
		id:     id,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier (recipient prefix + time component)
func (c *Connection) ID() string {
	return c.id
}

// Events returns the channel the subscribe handler drains
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has terminated
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send queues an event without blocking. It returns ErrDeliveryFailed when
// the connection is already closed or its buffer is full (a stalled client);
// the caller decides whether that tears the connection down.
func (c *Connection) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrDeliveryFailed
	default:
	}

	select {
	case <-c.done:
		return ErrDeliveryFailed
	case c.events <- ev:
		return nil
	default:
		return ErrDeliveryFailed
	}
}

// Close marks the connection terminated. Safe to call any number of times
// from any of the teardown paths (completion, timeout, transport error).
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Registry tracks every currently open push connection, keyed by connection
// identifier. It is process-wide shared state constructed once and injected
// into everything that fans out events.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register stores the connection under its identifier, overwriting any
// previous entry with the same identifier
func (r *Registry) Register(id string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
}

// Deregister removes the entry; absent identifiers are a no-op, so the three
// teardown callbacks may race without consequence
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// AllForRecipient returns every registered connection whose identifier starts
// with the recipient's prefix. The returned map is a snapshot; order of
// iteration is unspecified.
func (r *Registry) AllForRecipient(recipientID int64) map[string]*Connection {
	prefix := recipientPrefix(recipientID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make(map[string]*Connection)
	for id, conn := range r.conns {
		if strings.HasPrefix(id, prefix) {
			conns[id] = conn
		}
	}
	return conns
}

// Len returns the number of currently registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
