// Package application wires the state server together: config, persistence,
// live state, and the two transport surfaces.
package application

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ga1ien/kulti-stream/internal/application/usecase"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/persistence"
	"github.com/ga1ien/kulti-stream/internal/state"
	httpServer "github.com/ga1ien/kulti-stream/internal/interfaces/http"
	wsServer "github.com/ga1ien/kulti-stream/internal/interfaces/websocket"
)

// App is the dependency container for the state server.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	registry *state.Registry
	store    *persistence.StreamStore
	writer   *persistence.Writer

	streamUseCase *usecase.StreamUseCase

	httpServer *httpServer.Server
	wsServer   *wsServer.Server
}

// NewApp builds the server. A database that fails to open degrades the
// server to memory-only operation rather than refusing to start; live
// streaming is the primary job, persistence the bonus.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	profiles, err := config.LoadAgentProfiles(cfg.Agents.ProfilesPath)
	if err != nil {
		logger.Warn("Agent profiles unavailable", zap.Error(err))
		profiles = map[string]state.Profile{}
	}
	app.registry = state.NewRegistry(profiles, logger)

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		logger.Warn("Persistence disabled", zap.Error(err))
	} else {
		app.db = db
		app.store = persistence.NewStreamStore(db)
		app.writer = persistence.NewWriter(app.store, logger)
	}

	app.streamUseCase = usecase.NewStreamUseCase(
		app.registry, app.store, app.writer, cfg.Agents.DefaultID, logger)

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.HTTPPort,
		APIKey: cfg.Server.APIKey,
		Mode:   "release",
	}, app.streamUseCase, logger)

	app.wsServer = wsServer.NewServer(wsServer.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.WSPort,
	}, app.streamUseCase, logger)

	return app, nil
}

// Start brings both listeners up.
func (a *App) Start(ctx context.Context) error {
	if err := a.httpServer.Start(ctx); err != nil {
		return err
	}
	return a.wsServer.Start(ctx)
}

// Stop shuts everything down, flushing pending persistence last.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.wsServer.Stop(ctx); err != nil {
		firstErr = err
	}
	if err := a.httpServer.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.writer != nil {
		a.writer.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return firstErr
}

// StreamUseCase exposes the ingestion pipeline.
func (a *App) StreamUseCase() *usecase.StreamUseCase {
	return a.streamUseCase
}

// Logger exposes the app logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}
