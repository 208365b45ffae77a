package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/michaelhelvey/crabbot/internal/audit"
	"github.com/michaelhelvey/crabbot/internal/interactions"
	"github.com/michaelhelvey/crabbot/internal/platform/config"
	"github.com/michaelhelvey/crabbot/internal/platform/server"
	"github.com/michaelhelvey/crabbot/internal/platform/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("crabbot starting",
		"version", "1.0.0",
		"port", cfg.Server.Port,
	)

	// A bad key is a deployment error, not a per-request one.
	verifier, err := buildVerifier(cfg.Discord)
	if err != nil {
		return err
	}

	if cfg.Telemetry.Tracing {
		shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, logger, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	auditLogger := buildAuditLogger(cfg.Audit, logger)
	defer auditLogger.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Verifier:           verifier,
		InteractionHandler: interactions.NewHandler(auditLogger, logger),
		Audit:              auditLogger,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		Logger:             logger,
		ServiceName:        cfg.Telemetry.ServiceName,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("server ready", "addr", addr, "audit", cfg.Audit.Enabled, "tracing", cfg.Telemetry.Tracing)
	return srv.Start(ctx)
}

func buildVerifier(cfg config.DiscordConfig) (interactions.Verifier, error) {
	if cfg.PublicKey == "" {
		return nil, errors.New("DISCORD_PUBLIC_KEY is not set")
	}
	key, err := interactions.ParsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing discord public key: %w", err)
	}
	return interactions.NewEd25519Verifier(key), nil
}

func buildAuditLogger(cfg config.AuditConfig, logger *slog.Logger) audit.Logger {
	if !cfg.Enabled {
		return audit.NopLogger{}
	}
	return audit.NewAsyncLogger(audit.NewSlogSink(logger), audit.LoggerConfig{
		BufferSize:    cfg.BufferSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushIntervalMS) * time.Millisecond,
	})
}
