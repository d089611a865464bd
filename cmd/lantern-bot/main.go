// ABOUTME: Entry point for lantern-bot
// ABOUTME: Telegram command frontend for creating and inspecting sessions

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
)

const banner = `
    ╭─────────────────────────────╮
    │                             │
    │   lantern-bot               │
    │   session command frontend  │
    │                             │
    ╰─────────────────────────────╯
`

// getConfigPath returns the path to the bot config file.
// Priority: LANTERN_BOT_CONFIG env var > XDG_CONFIG_HOME/lantern/bot.toml > ~/.config/lantern/bot.toml
func getConfigPath() string {
	if envPath := os.Getenv("LANTERN_BOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bot.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lantern", "bot.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Server: %s\n", cfg.Server.URL)
	if len(cfg.Telegram.AllowedChats) > 0 {
		green.Print("    ▶ ")
		fmt.Printf("Chats:  %d allowed\n", len(cfg.Telegram.AllowedChats))
	}
	fmt.Println()

	bot, err := NewBot(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting bot")
	return bot.Run(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
