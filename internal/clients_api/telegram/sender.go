package telegram

// Sender delivers plain-text alerts to a Telegram chat
// Alternative to the Signal relay, selected with notifier.driver=telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"polymarket-monitor/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Sender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *log.Logger
}

// NewSender authorizes the bot against the default Telegram endpoint.
func NewSender(token, chatID string, logger *log.Logger) (*Sender, error) {
	return NewSenderWithEndpoint(token, chatID, tgbotapi.APIEndpoint, logger)
}

// NewSenderWithEndpoint is NewSender against a custom Bot API endpoint (format "<base>/bot%s/%s").
func NewSenderWithEndpoint(token, chatID, endpoint string, logger *log.Logger) (*Sender, error) {
	if logger == nil {
		logger = log.Nop()
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	logger.Success("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Sender{bot: bot, chatID: id, log: logger}, nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", s, err)
	}
	return id, nil
}

// Send delivers message and reports success. The bot API has no context support,
// so a cancelled ctx only prevents the call from starting.
func (s *Sender) Send(ctx context.Context, message string) bool {
	if ctx.Err() != nil {
		return false
	}
	msg := tgbotapi.NewMessage(s.chatID, message)
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		s.log.Error("Telegram send failed", zap.Error(err), zap.Int64("chatID", s.chatID))
		return false
	}
	return true
}
