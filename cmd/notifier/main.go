// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/adiadia/featuredesk/internal/config"
	"github.com/adiadia/featuredesk/internal/logging"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/adiadia/featuredesk/internal/notify"
	"github.com/adiadia/featuredesk/internal/persistence/postgres"
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
	metrics.Init()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.SchemaReady(ctx, pool); err != nil {
		logger.Error("schema not ready", "error", err)
		os.Exit(1)
	}

	n := notify.New(notify.Deps{
		Pool:        pool,
		Logger:      logger,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Timeout:     cfg.NotifyTimeout,
	})

	logger.Info("notifier started",
		"interval", cfg.NotifyInterval,
		"max_attempts", cfg.NotifyMaxAttempts,
	)

	if err := n.Run(ctx, cfg.NotifyInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}
