package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender delivers a plain text message to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BotSender sends through the Bot API.
type BotSender struct {
	bot *tgbotapi.BotAPI
}

func NewBotSender(token string) (*BotSender, error) {
	if token == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &BotSender{bot: bot}, nil
}

func (b *BotSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := b.bot.Send(msg)
	return err
}

// LogSender writes messages to the log instead of Telegram. Used for local
// runs without a bot token.
type LogSender struct {
	log *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	l := logger.With().Str("component", "noop-telegram").Logger()
	return &LogSender{log: &l}
}

func (s *LogSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.log.Info().Int64("chat_id", chatID).Int("len", len(text)).Msg("message suppressed")
	return nil
}
