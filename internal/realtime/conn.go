package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/capitalize-ai/support-chat/internal/model"
)

// Conn is the outbound side of one live connection: a bounded queue drained
// by the transport's writer. A full queue drops events.
type Conn struct {
	id        string
	send      chan model.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn creates a connection with a queue of buffer events.
func NewConn(buffer int) *Conn {
	if buffer <= 0 {
		buffer = 64
	}
	return &Conn{
		id:   uuid.NewString(),
		send: make(chan model.Event, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Deliver queues ev unless the connection is closed or its queue is full.
func (c *Conn) Deliver(ev model.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Events is drained by the transport writer.
func (c *Conn) Events() <-chan model.Event {
	return c.send
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close stops further deliveries. The queue channel is left open so a
// concurrent Deliver never panics.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
