package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shalteor/frequency127/internal/api"
	"github.com/shalteor/frequency127/internal/config"
	"github.com/shalteor/frequency127/internal/db"
	"github.com/shalteor/frequency127/internal/logger"
	"github.com/shalteor/frequency127/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Fatal("server failed", "err", err)
	}
}

func run() error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	logCloser, err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	logger.Info("database initialized", "driver", cfg.DatabaseType)

	session, err := middleware.NewSessionConfig(cfg.JWTSecret)
	if err != nil {
		return err
	}
	session.Expiration = cfg.SessionTTL
	session.CookieSecure = cfg.CookieSecure

	// Create API server
	server := api.NewServer(database, session,
		api.WithLocation(loc),
		api.WithPublicURL(cfg.PublicURL),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRequestTimeout(cfg.RequestTimeout),
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "day_timezone", loc.String(), "session_ttl", cfg.SessionTTL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
