package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"habit_notifier/internal/app"
	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var errUsage = errors.New("usage")

// TimerLister exposes the scheduler's armed timers.
type TimerLister interface {
	Armed() []app.ArmedTimer
}

// RegisterSettingsHandlers registers the commands that edit the schedule.
// Only the configured chat may use them.
func RegisterSettingsHandlers(
	ctx context.Context,
	b *telebot.Bot,
	repo notification.Repository,
	timers TimerLister,
	sink delivery.CommandSink,
	chatID int64,
	baseLogger *logrus.Entry,
) {
	b.Handle("/status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler": "/status",
			"chat_id": c.Chat().ID,
		})
		if c.Chat().ID != chatID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: this chat cannot manage reminders.")
		}

		defs, err := repo.GetAll(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to load notifications")
			return c.Send("Could not load your reminders, please try again later.")
		}
		handlerLogger.WithField("notifications_count", len(defs)).Info("Status listed")
		return c.Send(formatStatus(defs, timers.Armed()))
	})

	for _, name := range []string{"/enable", "/disable", "/time", "/snooze", "/defaults"} {
		b.Handle(name, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler": name,
				"chat_id": c.Chat().ID,
			})
			handlerLogger.Info("Command received")

			if c.Chat().ID != chatID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send("Error: this chat cannot manage reminders.")
			}

			cmd, err := settingsCommand(name, c.Args())
			if err != nil {
				handlerLogger.WithField("args", c.Args()).Warn("Invalid command format")
				return c.Send(err.Error())
			}

			if err := sink.Submit(ctx, cmd); err != nil {
				logWithError := handlerLogger.WithError(err)
				switch {
				case errors.Is(err, notification.ErrUnknownDefinitionID):
					logWithError.Warn("Unknown notification")
					return c.Send("No reminder with that id. Use /status to list them.")
				case errors.Is(err, notification.ErrInvalidTimeFormat):
					return c.Send("Time must look like HH:MM, for example 07:30.")
				default:
					logWithError.Error("Failed to apply command")
					return c.Send(fmt.Sprintf("Could not apply %s: %s", name, err.Error()))
				}
			}
			handlerLogger.Info("Command applied")
			return c.Send("Done.")
		})
	}
}

// settingsCommand maps a chat command and its arguments to a worker command.
func settingsCommand(name string, args []string) (notification.Command, error) {
	switch name {
	case "/enable", "/disable":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s <id>", errUsage, name)
		}
		return notification.ToggleCommand{ID: args[0], Enabled: name == "/enable"}, nil
	case "/time":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: /time <id> <HH:MM>", errUsage)
		}
		return notification.UpdateTimeCommand{ID: args[0], Time: args[1]}, nil
	case "/snooze":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: /snooze <id> [minutes]", errUsage)
		}
		cmd := notification.SnoozeCommand{ID: args[0]}
		if len(args) == 2 {
			minutes, err := strconv.Atoi(args[1])
			if err != nil || minutes <= 0 {
				return nil, fmt.Errorf("%w: minutes must be a positive number", errUsage)
			}
			cmd.Minutes = minutes
		}
		return cmd, nil
	case "/defaults":
		return notification.ScheduleDefaultsCommand{}, nil
	}
	return nil, fmt.Errorf("%w: unknown command %s", errUsage, name)
}

func formatStatus(defs []*notification.Definition, armed []app.ArmedTimer) string {
	if len(defs) == 0 {
		return "No reminders yet. Send /defaults to set up the default schedule."
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Time == defs[j].Time {
			return defs[i].ID < defs[j].ID
		}
		return defs[i].Time < defs[j].Time
	})

	next := make(map[string]string)
	snoozed := make(map[string]string)
	for _, t := range armed {
		if t.Snooze {
			snoozed[t.ID] = t.FireAt.Format("15:04")
		} else {
			next[t.ID] = t.FireAt.Format("Mon 15:04")
		}
	}

	var response strings.Builder
	response.WriteString("--- Reminders ---\n")
	for _, d := range defs {
		status := "off"
		if d.Enabled {
			status = "on"
		}
		response.WriteString(fmt.Sprintf("%s %s (%s)", d.Time, d.ID, status))
		if at, ok := next[d.ID]; ok {
			response.WriteString(", next " + at)
		}
		if at, ok := snoozed[d.ID]; ok {
			response.WriteString(", snoozed until " + at)
		}
		response.WriteString("\n")
	}
	return response.String()
}
