// Package app provides the top-level application lifecycle for the trading
// gateway. It wires together all dependencies (chain client, wallet,
// protocol backend, session, pricing, stores, and notifications) and runs
// the HTTP/WebSocket server until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rosterfi/rosterfi/internal/config"
	"github.com/rosterfi/rosterfi/internal/server"
	"github.com/rosterfi/rosterfi/internal/server/handler"
	"github.com/rosterfi/rosterfi/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown once the context is
// cancelled.
const shutdownTimeout = 5 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// WebSocket hub and HTTP server, and blocks until the context is
// cancelled. On return the caller should invoke Close to release
// resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub bridges the signal bus to connected clients.
	hub := ws.NewHub(deps.SignalBus, deps.Orchestrator.Status, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Quotes:  handler.NewQuoteHandler(deps.Pricing, a.logger),
		Trades:  handler.NewTradeHandler(deps.Orchestrator, deps.TradeStore, a.logger),
		Session: handler.NewSessionHandler(deps.Session, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimitRPS:   a.cfg.Server.RateLimitRPS,
		RateLimitBurst: a.cfg.Server.RateLimitBurst,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
