// Package telegram posts lifecycle notices to a chat.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/trogers1052/signal-desk/internal/config"
	"github.com/trogers1052/signal-desk/internal/events"
	"github.com/trogers1052/signal-desk/internal/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier is an events.Publisher that sends a message per notable event.
// A disabled notifier drops everything.
type Notifier struct {
	bot     sender
	chatID  int64
	enabled bool
	log     zerolog.Logger
}

// NewNotifier connects the bot when telegram is enabled. Connection
// failures disable the notifier rather than failing startup.
func NewNotifier(cfg config.TelegramConfig, log zerolog.Logger) *Notifier {
	log = log.With().Str("component", "telegram").Logger()
	if !cfg.Enabled {
		return &Notifier{log: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error().Err(err).Msg("failed to create telegram bot")
		return &Notifier{log: log}
	}

	log.Info().Str("username", bot.Self.UserName).Msg("telegram bot connected")
	return &Notifier{bot: bot, chatID: cfg.ChatID, enabled: true, log: log}
}

// Enabled reports whether messages will be sent
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// Publish implements events.Publisher
func (n *Notifier) Publish(_ context.Context, evt *events.Event) error {
	if !n.enabled {
		return nil
	}
	text, ok := Format(evt)
	if !ok {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Format renders the message for evt. Event types without a notice return false.
func Format(evt *events.Event) (string, bool) {
	switch evt.EventType {
	case events.SignalReceived:
		s, ok := evt.Data.(*models.Signal)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("📡 *%s* %s @ %s\nSignal #%d awaiting analysis",
			escape(s.Ticker), escape(s.Action), s.Price.StringFixed(models.PricePlaces), s.ID), true
	case events.SignalAnalyzed:
		s, ok := evt.Data.(*models.Signal)
		if !ok || s.AnalyzedBy == nil || s.ResponseTimeSeconds == nil {
			return "", false
		}
		return fmt.Sprintf("✅ Signal #%d (%s) analyzed by %s in %ss",
			s.ID, escape(s.Ticker), escape(*s.AnalyzedBy), s.ResponseTimeSeconds.StringFixed(models.ResponseTimePlaces)), true
	case events.SignalsStale:
		r, ok := evt.Data.(events.StaleReport)
		if !ok || r.Pending == 0 {
			return "", false
		}
		return fmt.Sprintf("⚠️ *%d* signal(s) unanalyzed since before %s UTC",
			r.Pending, r.OlderThan.UTC().Format("15:04:05")), true
	}
	return "", false
}

// escape quotes Markdown control characters in alert-supplied text
func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}
