// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"strings"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	channel *Channel,
	sink delivery.CommandSink,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("chat_id", c.Chat().ID)
		logCtx.Info("Processing /start command")

		if c.Chat().ID != channel.ChatID() {
			logCtx.Warn("Chat is not the configured one")
			return c.Send("This bot sends reminders to a single configured chat.")
		}

		channel.SetPermission(delivery.PermissionGranted)
		if err := sink.Submit(ctx, notification.ScheduleDefaultsCommand{}); err != nil {
			logCtx.WithError(err).Error("Failed to schedule default reminders")
			return c.Send("Reminders are on, but the default schedule could not be set up. Try /defaults later.")
		}
		logCtx.Info("Notifications granted and defaults scheduled")
		return c.Send("Reminders are on. Use /status to see your schedule and /help for commands.")
	})

	b.Handle("/mute", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/mute").WithField("chat_id", c.Chat().ID)
		if c.Chat().ID != channel.ChatID() {
			logCtx.Warn("Chat is not the configured one")
			return nil
		}
		channel.SetPermission(delivery.PermissionDenied)
		logCtx.Info("Notifications muted")
		return c.Send("Reminders muted. Send /start to turn them back on.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		startHelpLogger.WithField("command", "/help").WithField("chat_id", c.Chat().ID).Info("Processing /help command")
		return c.Send(helpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func helpText() string {
	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("`/start`\n - Turn reminders on and set up the default schedule.\n\n")
	helpText.WriteString("`/mute`\n - Stop delivering reminders.\n\n")
	helpText.WriteString("`/status`\n - Show every reminder and when it fires next.\n\n")
	helpText.WriteString("`/enable <id>` / `/disable <id>`\n - Turn one reminder on or off.\n\n")
	helpText.WriteString("`/time <id> <HH:MM>`\n - Change when a reminder fires.\n\n")
	helpText.WriteString("`/snooze <id> [minutes]`\n - Remind again later.\n\n")
	helpText.WriteString("`/defaults`\n - Restore the default reminders.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
