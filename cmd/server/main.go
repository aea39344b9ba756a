package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/geoseek/internal/api"
	"github.com/mcoot/geoseek/internal/config"
	"github.com/mcoot/geoseek/internal/factory"
)

func main() {
	// Bootstrap logger until configuration is loaded
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("could not load .env file", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(os.Getenv("GEOSEEK_CONFIG"))
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging from configuration
	logger = cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.H2C = cfg.Server.H2C
	server := api.NewServer(app.Router(cfg.Server.AllowedOrigins), serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Background session timers
	runDone := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(runDone)
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("late_join_policy", string(cfg.Session.LateJoinPolicy)),
		slog.String("default_start_policy", string(cfg.Session.DefaultStartPolicy)))

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	cancel()
	<-runDone
	logger.Info("server stopped")
	if exitCode != 0 {
		// os.Exit skips deferred calls
		_ = app.Close()
		os.Exit(exitCode)
	}
}
