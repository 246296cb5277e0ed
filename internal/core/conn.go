package core

// Conn is one authenticated realtime connection. A user may hold several
// connections at once; each has its own ID and outbound buffer.
type Conn struct {
	ID       string
	UserID   string
	Username string

	events chan *Event
}

// NewConn creates a connection with a bounded outbound buffer. Events beyond
// the buffer are dropped rather than blocking the sender.
func NewConn(id, userID, username string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		ID:       id,
		UserID:   userID,
		Username: username,
		events:   make(chan *Event, buffer),
	}
}

// Events returns the outbound event stream for the transport write loop.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// push enqueues an event without blocking. Returns false when the buffer is
// full and the event was dropped.
func (c *Conn) push(ev *Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}
