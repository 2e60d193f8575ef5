// internal/infra/telegram/callback_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var errBadCallback = errors.New("invalid callback data")

// RegisterCallbackHandlers turns inline button presses into click commands.
func RegisterCallbackHandlers(ctx context.Context, b *telebot.Bot, sink delivery.CommandSink, chatID int64, baseLogger *logrus.Entry) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler": "callback",
			"data":    data,
		})

		if c.Chat() == nil || c.Chat().ID != chatID {
			logCtx.Warn("Callback from unknown chat")
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown chat."})
		}

		click, err := parseCallbackData(data)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("%w: %s", err, data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		logCtx = logCtx.WithFields(logrus.Fields{
			"notification_id": click.NotificationID,
			"action":          click.Action,
		})

		if err := sink.Submit(ctx, click); err != nil {
			logCtx.WithError(err).Error("Failed to process button press")
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong."})
		}
		logCtx.Info("Button press processed")
		return c.Respond(&telebot.CallbackResponse{Text: callbackAck(click.Action)})
	})
}

// parseCallbackData reads "notif|<id>|<action>".
func parseCallbackData(data string) (notification.ClickCommand, error) {
	data = strings.TrimPrefix(data, "\f")
	parts := strings.Split(data, callbackSep)
	if len(parts) != 3 || parts[0] != callbackPrefix || parts[1] == "" {
		return notification.ClickCommand{}, errBadCallback
	}
	return notification.ClickCommand{NotificationID: parts[1], Action: parts[2]}, nil
}

func callbackAck(action string) string {
	switch notification.ResolveAction(action).Kind {
	case notification.RouteSnooze:
		return "Snoozed."
	case notification.RouteSkip:
		return "Skipped."
	}
	return "Opening…"
}
