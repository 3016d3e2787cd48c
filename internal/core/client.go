package core

import (
	"fmt"
	"sync"
)

// eventQueueSize bounds per-member outbound queues. A member whose queue
// overflows misses events until the next snapshot resynchronizes it.
const eventQueueSize = 64

// Client is one transport connection as seen by the core layer. Its ID
// is the connection identity, not a durable user identity: a reconnect
// produces a brand-new Client.
type Client struct {
	ID     string
	Events chan *Event

	mu    sync.Mutex
	name  string
	state ConnState
	room  *Room
}

// NewClient constructs a client in the given initial state. Server-side
// connections start at StateConnected (the handshake already happened);
// client sessions start at StateDisconnected.
func NewClient(id string, initial ConnState) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, eventQueueSize),
		state:  initial,
	}
}

// Name returns the display name supplied with the last create/join request.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName records the display name. Names are not validated for
// uniqueness within a room.
func (c *Client) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition moves the connection to the next state, rejecting edges the
// state machine does not define. Any state may drop to Disconnected.
func (c *Client) Transition(to ConnState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", c.state, to)
	}
	c.state = to
	return nil
}

// Room returns the room this connection is a member of, or nil.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(r *Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// takeRoom clears and returns the room reference. The second caller gets
// nil, which makes leave idempotent.
func (c *Client) takeRoom() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.room
	c.room = nil
	return r
}

// send enqueues an event without blocking. Returns false if the event
// was dropped because the queue is full.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
