package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/auth"
	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/hub"
	"github.com/vovakirdan/wirechat-widget/internal/store"
	"github.com/vovakirdan/wirechat-widget/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
	transporthttp "github.com/vovakirdan/wirechat-widget/internal/transport/http"
)

// App wires the development backend: store, hub and HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *hub.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the backend with the provided configuration.
func New(cfg *config.ServerConfig, logger *zerolog.Logger) (*App, error) {
	telemetry.Init()

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	h := hub.NewHub(st, hub.Limits{
		HistoryLimit:    cfg.HistoryLimit,
		MaxMessageBytes: int(cfg.MaxMessageBytes),
	}, logger)
	server := transporthttp.NewServer(h, NewAuthService(cfg), cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             h,
		store:           st,
		log:             logger,
	}, nil
}

// NewAuthService builds the token service from server configuration.
func NewAuthService(cfg *config.ServerConfig) *auth.Service {
	return auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting wirechat backend")
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
