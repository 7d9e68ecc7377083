// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiadia/featuredesk/internal/config"
	"github.com/adiadia/featuredesk/internal/logging"
	"github.com/adiadia/featuredesk/internal/persistence/postgres"
	"github.com/adiadia/featuredesk/internal/repository"
	httptransport "github.com/adiadia/featuredesk/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			logger.Error("schema bootstrap failed", "error", err)
			os.Exit(1)
		}
	}

	projectRepo := repository.NewProjectRepository(pool, logger)
	featureRepo := repository.NewFeatureRepository(pool, logger)
	eventRepo := repository.NewEventRepository(pool, logger)
	apiKeyRepo := repository.NewAPIKeyRepository(pool, logger)

	handler := httptransport.NewRouter(httptransport.Deps{
		Projects:       projectRepo,
		Features:       featureRepo,
		Events:         eventRepo,
		APIKeyAdmin:    apiKeyRepo,
		APIKeyResolver: apiKeyRepo,
		HealthChecker:  postgres.NewSchemaHealthChecker(pool),
		Logger:         logger,
		AdminToken:     cfg.AdminToken,
		Version:        Version,
		Commit:         Commit,
		BuildDate:      BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"env", cfg.Env,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
