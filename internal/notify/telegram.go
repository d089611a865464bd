// ABOUTME: Telegram Bot API notification backend
// ABOUTME: Delivers text and photo messages via the bot sendMessage/sendPhoto methods

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends notifications through the Telegram Bot API. Chat IDs are
// the decimal chat identifiers Telegram assigns to conversations.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegram authenticates the bot token against the Telegram API.
// The HTTP client carries its own timeout since the bot library does not
// accept a per-call context.
func NewTelegram(botToken string, logger *slog.Logger) (*Telegram, error) {
	client := &http.Client{Timeout: photoTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("authenticating telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		logger: logger.With("component", "telegram"),
	}, nil
}

// SendText implements Sender.
func (t *Telegram) SendText(ctx context.Context, chatID, text string) bool {
	id, ok := t.parseChatID(chatID)
	if !ok {
		return false
	}
	if err := t.send(ctx, tgbotapi.NewMessage(id, text)); err != nil {
		t.logger.Debug("sendMessage failed", "chat_id", chatID, "error", err)
		return false
	}
	return true
}

// SendPhoto implements Sender.
func (t *Telegram) SendPhoto(ctx context.Context, chatID, path, caption string) bool {
	id, ok := t.parseChatID(chatID)
	if !ok {
		return false
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FilePath(path))
	photo.Caption = caption
	if err := t.send(ctx, photo); err != nil {
		t.logger.Debug("sendPhoto failed", "chat_id", chatID, "error", err)
		return false
	}
	return true
}

// send performs the API call in a goroutine so the dispatcher's context
// deadline is still honored even though the bot library is context-unaware.
func (t *Telegram) send(ctx context.Context, msg tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telegram) parseChatID(chatID string) (int64, bool) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		t.logger.Debug("chat id is not a telegram chat id", "chat_id", chatID)
		return 0, false
	}
	return id, true
}

var _ Sender = (*Telegram)(nil)
