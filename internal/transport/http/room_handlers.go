package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/store"
)

// RoomHandlers provides the read-only REST endpoints for room state.
type RoomHandlers struct {
	registry *core.Registry
	journal  store.Journal
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(registry *core.Registry, journal store.Journal, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry: registry,
		journal:  journal,
		log:      logger,
	}
}

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse is the live occupancy of one room.
type RoomResponse struct {
	Code     string `json:"code"`
	Members  int    `json:"members"`
	Capacity int    `json:"capacity"`
}

// JournalEntryResponse is one room lifecycle record.
type JournalEntryResponse struct {
	Code        string `json:"code"`
	CreatedAt   string `json:"created_at"`
	ClosedAt    string `json:"closed_at,omitempty"`
	PeakMembers int    `json:"peak_members"`
	Messages    int64  `json:"messages"`
}

// GetRoom reports whether a room is live and how full it is.
// GET /api/rooms/:code
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	code := core.NormalizeRoomCode(c.Param("code"))

	members, capacity, ok := h.registry.Lookup(code)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	c.JSON(http.StatusOK, RoomResponse{
		Code:     code,
		Members:  members,
		Capacity: capacity,
	})
}

// RecentJournal returns the newest room lifecycle records.
// GET /api/journal?limit=20
func (h *RoomHandlers) RecentJournal(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("read journal")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	entries := make([]JournalEntryResponse, 0, len(records))
	for _, rec := range records {
		entry := JournalEntryResponse{
			Code:        rec.Code,
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
			PeakMembers: rec.PeakMembers,
			Messages:    rec.Messages,
		}
		if rec.ClosedAt != nil {
			entry.ClosedAt = rec.ClosedAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{"rooms": entries})
}
