package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"depositos/internal/auth"
	"depositos/internal/backend"
	"depositos/internal/cli"
	"depositos/internal/config"
	apphttp "depositos/internal/http"
	applog "depositos/internal/log"
	"depositos/internal/services"
	"depositos/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	cli.ValidateConfig(logger, cfg, (*config.Config).Validate)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig,
		services.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	if err := auth.EnsureAdminPassword(ctx, result.Passwords, cfg.AdminPassword, logger); err != nil {
		logger.Error("Failed to seed admin password", applog.FieldError, err)
		os.Exit(1)
	}

	sessions := session.NewStore(cfg.SessionTTL, session.WithLogger(logger))
	authn := auth.NewAuthenticator(result.Passwords, sessions, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	}, result.Service, authn, sessions)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting depositos server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"session_ttl", cfg.SessionTTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sessions.Run(gctx, cfg.SessionSweepInterval) })
	g.Go(func() error { return srv.RunMaintenance(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
