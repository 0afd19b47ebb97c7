package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// botClient is the subset of *tgbotapi.BotAPI the client needs.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient delivers messages through the Telegram Bot API. Recipient
// ids are numeric chat ids, or @channelname for public channels.
type TelegramClient struct {
	bot botClient
}

// NewTelegramClient authenticates the bot token against the Bot API.
func NewTelegramClient(token string) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot initialization failed: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramClient{bot: bot}, nil
}

func (c *TelegramClient) Send(ctx context.Context, recipientID string, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cfg tgbotapi.MessageConfig
	if strings.HasPrefix(recipientID, "@") {
		cfg = tgbotapi.NewMessageToChannel(recipientID, FormatHTML(msg))
	} else {
		chatID, err := strconv.ParseInt(recipientID, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid chat id %q", ErrPermanentDelivery, recipientID)
		}
		cfg = tgbotapi.NewMessage(chatID, FormatHTML(msg))
	}
	cfg.ParseMode = tgbotapi.ModeHTML

	if _, err := c.bot.Send(cfg); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

// classifyTelegramError wraps failures that mean the recipient is gone with
// ErrPermanentDelivery. Everything else, including rate limiting, is
// returned as is and treated as transient.
func classifyTelegramError(err error) error {
	code, message := parseTelegramError(err)
	switch {
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrPermanentDelivery, err)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "chat not found"):
		return fmt.Errorf("%w: %v", ErrPermanentDelivery, err)
	}
	return fmt.Errorf("telegram send failed: %w", err)
}

func parseTelegramError(err error) (int, string) {
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}
	var apiErrPtr *tgbotapi.Error
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, apiErrPtr.Message
	}
	return 0, ""
}
