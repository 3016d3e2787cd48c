package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/store"
)

// maxCodeAttempts bounds code allocation retries. With a 36^6 code space
// this only trips when the configuration shrinks the space to nothing.
const maxCodeAttempts = 100

// Settings carries the room limits the registry enforces.
type Settings struct {
	RoomCapacity     int
	RoomCodeLength   int
	MaxMessageLength int
	HistoryLimit     int
}

// DefaultSettings returns the production limits.
func DefaultSettings() Settings {
	return Settings{
		RoomCapacity:     4,
		RoomCodeLength:   6,
		MaxMessageLength: 200,
		HistoryLimit:     50,
	}
}

// Registry owns the table of live rooms. It is the only state touched by
// multiple connection handlers at once; everything else is serialized
// inside a single room.
type Registry struct {
	settings Settings
	journal  store.Journal
	log      *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry builds a registry. journal may be nil to disable the
// lifecycle journal (tests do this).
func NewRegistry(settings Settings, journal store.Journal, logger *zerolog.Logger) *Registry {
	return &Registry{
		settings: settings,
		journal:  journal,
		log:      logger,
		rooms:    make(map[string]*Room),
	}
}

// CreateRoom allocates a fresh unique code, creates the room, and admits
// the requesting connection as its first member, all atomically under
// the table lock: a concurrent creator can neither receive the same code
// nor land in this room.
func (r *Registry) CreateRoom(c *Client) (string, error) {
	if c.Room() != nil {
		return "", ErrAlreadyJoined
	}

	r.mu.Lock()
	code := ""
	for i := 0; i < maxCodeAttempts; i++ {
		candidate := GenerateRoomCode(r.settings.RoomCodeLength)
		if _, taken := r.rooms[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		r.mu.Unlock()
		return "", ErrCodeSpaceExhausted
	}

	room := newRoom(code, r.settings)
	r.rooms[code] = room
	r.mu.Unlock()

	// The room is not reachable by joiners until they learn the code
	// from the creator, but go through addMember anyway so the creator
	// gets the same ack/snapshot sequence as any joiner.
	if err := room.addMember(c); err != nil {
		// Can only happen if the creator raced itself; undo the slot.
		r.mu.Lock()
		delete(r.rooms, code)
		r.mu.Unlock()
		return "", err
	}
	c.setRoom(room)

	r.log.Info().Str("room", code).Str("conn", c.ID).Msg("room created")
	r.recordCreated(code)
	return code, nil
}

// JoinRoom adds a connection to the room with the given code. The code
// is case-normalized first. A room that is mid-destruction counts as
// not found.
func (r *Registry) JoinRoom(code string, c *Client) error {
	if c.Room() != nil {
		return ErrAlreadyJoined
	}

	code = NormalizeRoomCode(code)
	if !ValidRoomCode(code, r.settings.RoomCodeLength) {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	room, ok := r.rooms[code]
	r.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}

	if err := room.addMember(c); err != nil {
		if err == errRoomClosed {
			return ErrRoomNotFound
		}
		return err
	}
	c.setRoom(room)

	r.log.Info().Str("room", code).Str("conn", c.ID).Msg("member joined")
	return nil
}

// Leave removes the connection from its room, if it has one. Leaving
// twice, or leaving without ever joining, is a no-op. A room that loses
// its last member is destroyed here, synchronously, which is the only
// way its code becomes reusable.
func (r *Registry) Leave(c *Client) {
	room := c.takeRoom()
	if room == nil {
		return
	}

	closed := room.removeMember(c)
	r.log.Info().Str("room", room.Code()).Str("conn", c.ID).Msg("member left")
	if !closed {
		return
	}

	r.mu.Lock()
	if r.rooms[room.Code()] == room {
		delete(r.rooms, room.Code())
	}
	r.mu.Unlock()

	r.log.Info().Str("room", room.Code()).Msg("room destroyed")
	r.recordClosed(room)
}

// Lookup reports the occupancy of a live room by (case-insensitive) code.
func (r *Registry) Lookup(code string) (members, capacity int, ok bool) {
	code = NormalizeRoomCode(code)
	r.mu.Lock()
	room, found := r.rooms[code]
	r.mu.Unlock()
	if !found {
		return 0, 0, false
	}
	members, capacity = room.Occupancy()
	return members, capacity, true
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) recordCreated(code string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RoomCreated(context.Background(), code); err != nil {
		r.log.Warn().Err(err).Str("room", code).Msg("journal room created")
	}
}

func (r *Registry) recordClosed(room *Room) {
	if r.journal == nil {
		return
	}
	peak, messages := room.stats()
	if err := r.journal.RoomClosed(context.Background(), room.Code(), peak, messages); err != nil {
		r.log.Warn().Err(err).Str("room", room.Code()).Msg("journal room closed")
	}
}
