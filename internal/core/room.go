package core

import (
	"sync"
	"time"
)

// Room is one ephemeral chat session. All membership and message
// mutation happens under r.mu, which serializes operations per room and
// gives every member the same total order of events. Rooms never share
// state, so operations on different rooms proceed independently.
type Room struct {
	code string

	mu           sync.Mutex
	members      []*Client // insertion order kept for display
	capacity     int
	maxBody      int
	history      []ChatMessage
	historyLimit int
	closed       bool

	peakMembers  int
	messageCount int64
}

func newRoom(code string, s Settings) *Room {
	return &Room{
		code:         code,
		capacity:     s.RoomCapacity,
		maxBody:      s.MaxMessageLength,
		historyLimit: s.HistoryLimit,
	}
}

// Code returns the room's identifier.
func (r *Room) Code() string {
	return r.code
}

// addMember admits a connection, enforcing the capacity invariant. On
// success the joiner receives, in order: the acknowledgement, retained
// history (if any), and a membership snapshot; every other member
// receives the updated snapshot. All of that happens under the room
// lock, so no later event can overtake the join.
func (r *Room) addMember(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}
	if len(r.members) >= r.capacity {
		return ErrRoomFull
	}
	for _, m := range r.members {
		if m.ID == c.ID {
			return ErrAlreadyJoined
		}
	}

	r.members = append(r.members, c)
	if len(r.members) > r.peakMembers {
		r.peakMembers = len(r.members)
	}

	c.send(&Event{
		Kind: EventAck,
		Room: r.code,
		Ack:  &Ack{Success: true, RoomCode: r.code},
	})
	if len(r.history) > 0 {
		replay := make([]ChatMessage, len(r.history))
		copy(replay, r.history)
		c.send(&Event{Kind: EventHistory, Room: r.code, Messages: replay})
	}
	r.broadcastLocked(&Event{
		Kind:    EventRoomSnapshot,
		Room:    r.code,
		Members: r.snapshotLocked(),
	})
	return nil
}

// removeMember drops a connection if present; a no-op otherwise.
// Returns true exactly once: when the room just lost its last member
// and latched closed. Remaining members get a fresh snapshot.
func (r *Room) removeMember(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, m := range r.members {
		if m.ID == c.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	if len(r.members) == 0 {
		r.closed = true
		return true
	}

	r.broadcastLocked(&Event{
		Kind:    EventRoomSnapshot,
		Room:    r.code,
		Members: r.snapshotLocked(),
	})
	return false
}

// PostMessage timestamps a message and fans it out to every member,
// including the sender: all clients render from the authoritative feed
// instead of echoing locally.
func (r *Room) PostMessage(c *Client, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	member := false
	for _, m := range r.members {
		if m.ID == c.ID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotAMember
	}
	if len([]rune(body)) > r.maxBody {
		return ErrMessageTooLong
	}

	msg := ChatMessage{From: c.Name(), Body: body, SentAt: time.Now()}
	r.history = append(r.history, msg)
	if len(r.history) > r.historyLimit {
		r.history = r.history[len(r.history)-r.historyLimit:]
	}
	r.messageCount++

	r.broadcastLocked(&Event{Kind: EventChatMessage, Room: r.code, Message: msg})
	return nil
}

// Occupancy reports the live member count and capacity.
func (r *Room) Occupancy() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members), r.capacity
}

// stats returns the lifetime counters recorded in the journal on close.
func (r *Room) stats() (peak int, messages int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peakMembers, r.messageCount
}

func (r *Room) snapshotLocked() []MemberInfo {
	infos := make([]MemberInfo, 0, len(r.members))
	for _, m := range r.members {
		infos = append(infos, MemberInfo{ConnectionID: m.ID, DisplayName: m.Name()})
	}
	return infos
}

func (r *Room) broadcastLocked(ev *Event) {
	for _, m := range r.members {
		m.send(ev)
	}
}
