package store

import (
	"context"
	"time"
)

// RoomRecord is one row of the room lifecycle journal. Chat bodies are
// never written here; the journal tracks coordination events only.
type RoomRecord struct {
	ID          int64
	Code        string
	CreatedAt   time.Time
	ClosedAt    *time.Time
	PeakMembers int
	Messages    int64
}

// Journal records room lifecycle events for operational visibility.
type Journal interface {
	// RoomCreated records that a room with the given code went live.
	RoomCreated(ctx context.Context, code string) error
	// RoomClosed marks the most recent open record for the code as
	// closed, with the room's lifetime counters.
	RoomClosed(ctx context.Context, code string, peakMembers int, messages int64) error
	// Recent returns the newest records, most recent first.
	Recent(ctx context.Context, limit int) ([]RoomRecord, error)
	// Close releases the underlying storage.
	Close() error
}
