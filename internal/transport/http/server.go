package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/config"
	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/store"
)

// NewServer builds the HTTP server: health check, the WebSocket
// endpoint, and a small read-only REST surface. All room mutation flows
// over the WebSocket.
func NewServer(registry *core.Registry, journal store.Journal, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(NewWSHandler(registry, logger)))

	rooms := NewRoomHandlers(registry, journal, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms/:code", rooms.GetRoom)
		api.GET("/journal", rooms.RecentJournal)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
