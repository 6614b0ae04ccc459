// Package notify delivers assignment alerts outside the chat surface.
// Delivery is fire-and-forget: failures are logged, never retried.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/store"
)

// LogNotifier simulates the email alert by writing it to the log, the default
// when no delivery channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) TaskAssigned(task store.Task, assignee store.User) {
	name := assignee.Name
	if name == "" {
		name = assignee.ID
	}
	n.log.Info("email alert",
		zap.String("event", "task_assigned"),
		zap.String("task", task.Title),
		zap.String("assignee", name),
		zap.Time("due", task.DueDate),
	)
}

// TelegramSender is the slice of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SenderFactory creates TelegramSender instances (allows mocking).
type SenderFactory func(token string) (TelegramSender, error)

var defaultSenderFactory SenderFactory = func(token string) (TelegramSender, error) {
	return tgbotapi.NewBotAPI(token)
}

// TelegramNotifier pushes assignment alerts to a fixed Telegram chat.
type TelegramNotifier struct {
	bot    TelegramSender
	chatID int64
	log    *zap.Logger
}

func NewTelegramNotifier(cfg config.TelegramNotifyConfig, log *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(cfg, log, defaultSenderFactory)
}

// NewTelegramNotifierWithFactory creates a TelegramNotifier with a custom bot
// factory (for testing).
func NewTelegramNotifierWithFactory(cfg config.TelegramNotifyConfig, log *zap.Logger, factory SenderFactory) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram notify token is required")
	}
	bot, err := factory(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram notify bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (n *TelegramNotifier) TaskAssigned(task store.Task, assignee store.User) {
	name := assignee.Name
	if name == "" {
		name = assignee.ID
	}
	text := fmt.Sprintf("New task %q assigned to %s, due %s.", task.Title, name, task.DueDate.Format("2006-01-02"))

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("telegram notify failed", zap.Error(err))
	}
}

// Multi fans one assignment event out to several notifiers.
type Multi []store.Notifier

func (m Multi) TaskAssigned(task store.Task, assignee store.User) {
	for _, n := range m {
		n.TaskAssigned(task, assignee)
	}
}

// FromConfig assembles the notifier stack: the log notifier always runs,
// Telegram joins when enabled and configured.
func FromConfig(cfg config.NotifyConfig, log *zap.Logger) store.Notifier {
	notifiers := Multi{NewLogNotifier(log)}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegramNotifier(cfg.Telegram, log)
		if err != nil {
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return notifiers
}
