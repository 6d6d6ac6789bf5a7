package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/callengine"
	"github.com/vovakirdan/callrelay/internal/callengine/livekit"
	"github.com/vovakirdan/callrelay/internal/config"
	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/metrics"
	"github.com/vovakirdan/callrelay/internal/presence"
	"github.com/vovakirdan/callrelay/internal/store"
	"github.com/vovakirdan/callrelay/internal/store/gormstore"
	"github.com/vovakirdan/callrelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/callrelay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	mirror          *presence.Mirror
	store           store.RowStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rows, err := openStore(cfg.Presence)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return newWithStore(cfg, rows, logger), nil
}

// newWithStore wires the app around an already opened store. rows may be nil.
func newWithStore(cfg *config.Config, rows store.RowStore, logger *zerolog.Logger) *App {
	var (
		sinks  []core.PresenceSink
		mirror *presence.Mirror
	)
	if rows != nil {
		mirror = presence.NewMirror(rows, logger)
		sinks = append(sinks, mirror)
		logger.Info().Str("driver", cfg.Presence.Driver).Msg("presence mirror enabled")
	}

	var engine callengine.Engine
	if cfg.LiveKit.Enabled {
		engine = livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL, cfg.LiveKit.TokenTTL)
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit join credentials enabled")
	}

	m := metrics.New()
	hub := core.NewHub(core.HubOptions{
		CallingTimeout: cfg.CallingTimeout,
		SweepInterval:  cfg.SweepInterval,
		Recorder:       m,
		Sinks:          sinks,
	}, logger)

	server := transporthttp.NewServer(hub, transporthttp.Options{
		Rows:    rows,
		Engine:  engine,
		Metrics: m.Handler(),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		mirror:          mirror,
		store:           rows,
		log:             logger,
	}
}

// openStore returns nil when presence mirroring is disabled.
func openStore(cfg config.PresenceConfig) (store.RowStore, error) {
	switch cfg.Driver {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverSQLite:
		return sqlite.New(cfg.DSN)
	case config.DriverPostgres:
		return gormstore.New(config.DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown presence driver %q", cfg.Driver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// The store is closed only after the hub and the mirror have returned.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		a.hub.Run(workerCtx)
	}()

	if a.mirror != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := a.mirror.Run(workerCtx); err != nil {
				a.log.Error().Err(err).Msg("presence mirror stopped")
			}
		}()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopWorkers()
		workers.Wait()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		shutdownErr := a.server.Shutdown(shutdownCtx)
		workers.Wait()
		a.cleanup()
		if shutdownErr != nil {
			return shutdownErr
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
