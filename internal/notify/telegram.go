// Package notify surfaces sync failures and due-task reminders through
// Telegram. When the queue gives up on an item the user has to hear about it
// somewhere other than a log file.
package notify

import (
	"fmt"
	"strings"

	"todone/internal/config"
	"todone/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier implements domain.Notifier over a bot chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

// NotifySyncFailure reports a queue item that exhausted its retries.
func (n *TelegramNotifier) NotifySyncFailure(item *models.QueueItem) error {
	lastError := ""
	if item.LastError != nil {
		lastError = *item.LastError
	}

	text := fmt.Sprintf(
		"⚠️ Изменение не синхронизировано\n\nОперация: %s %s\nID: %s\nПопыток: %d\nОшибка: %s",
		item.Op, item.Collection, item.EntityID, item.Attempts, lastError,
	)
	return n.send(text)
}

// NotifyDueTasks sends the morning digest of tasks due today or overdue.
func (n *TelegramNotifier) NotifyDueTasks(tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 Задачи на сегодня (%d):\n", len(tasks)))
	for _, task := range tasks {
		line := "• " + task.Title
		if task.Priority >= models.PriorityHigh {
			line = "• ❗ " + task.Title
		}
		b.WriteString(line + "\n")
	}
	return n.send(b.String())
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	if n.logger != nil {
		n.logger.Debug().Int64("chat_id", n.chatID).Msg("notification sent")
	}
	return nil
}
