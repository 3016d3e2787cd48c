package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/config"
	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/store"
	"github.com/dungeonparty/room-server/internal/store/sqlite"
	transporthttp "github.com/dungeonparty/room-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	journal         store.Journal
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	journal, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("room journal initialized")

	registry := core.NewRegistry(core.Settings{
		RoomCapacity:     cfg.RoomCapacity,
		RoomCodeLength:   cfg.RoomCodeLength,
		MaxMessageLength: cfg.MaxMessageLength,
		HistoryLimit:     cfg.HistoryLimit,
	}, journal, logger)

	server := transporthttp.NewServer(registry, journal, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		journal:         journal,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the journal and other resources.
func (a *App) cleanup() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close journal")
		} else {
			a.log.Info().Msg("journal closed")
		}
	}
}
