package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/rafflegrid/internal/api"
	"github.com/mcoot/rafflegrid/internal/config"
	"github.com/mcoot/rafflegrid/internal/factory"
)

// How often idle client coordinators are evicted
const evictionInterval = time.Minute

// Delay before the event relay resubscribes after its stream ends
const relayRetryDelay = time.Second

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Re-create the logger at the configured level
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	if !app.AdminService.Enabled() {
		logger.Warn("admin operations disabled, set RAFFLEGRID_ADMIN_PASSWORD_HASH to enable")
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := app.Seed(ctx, cfg.SlotCount); err != nil {
		logger.Error("failed to seed slots", slog.String("error", err.Error()))
		return
	}

	// Start background workers
	go app.Hub.Run()
	go app.Registry.RunEviction(ctx, evictionInterval)
	go relay(ctx, app, logger)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		Registry:        app.Registry,
		IdentityService: app.IdentityService,
		AdminService:    app.AdminService,
		Hub:             app.Hub,
		Broadcaster:     app.Broadcaster,
	})

	// Create server
	server := api.NewServer(router, api.ServerConfigFrom(cfg), logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType),
		slog.Int("slots", cfg.SlotCount),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Close streams from the hub side first so clients see a clean end
		app.Hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return
		}
	}

	logger.Info("server stopped")
}

// relay pushes store changes to SSE clients, resubscribing whenever the
// store ends the stream
func relay(ctx context.Context, app *factory.App, logger *slog.Logger) {
	for {
		err := app.Broadcaster.Relay(ctx, app.Storage)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("event relay failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}
