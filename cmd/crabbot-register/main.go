package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelhelvey/crabbot/internal/discordapi"
	"github.com/michaelhelvey/crabbot/internal/platform/config"
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

	logger := telemetry.NewLogger(cfg.Log.Level, "text")
	telemetry.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return register(ctx, cfg.Discord, logger)
}

// register installs the default command list for the configured application.
func register(ctx context.Context, cfg config.DiscordConfig, logger *slog.Logger) error {
	client, err := discordapi.NewClient(cfg.APIBase, cfg.AppID, cfg.BotToken, nil)
	if err != nil {
		return fmt.Errorf("creating discord client: %w", err)
	}

	registered, err := client.PutCommands(ctx, discordapi.DefaultCommands())
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}

	for _, cmd := range registered {
		logger.Info("registered command", "name", cmd.Name, "id", cmd.ID, "type", cmd.Type)
	}
	logger.Info("command registration complete", "count", len(registered))
	return nil
}
