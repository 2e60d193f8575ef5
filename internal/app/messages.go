package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"habit_notifier/internal/domain/notification"

	"github.com/pquerna/ffjson/ffjson"
)

var ErrMalformedMessage = errors.New("malformed worker message")

// Message is the JSON surface foreground clients use to command the worker.
type Message struct {
	Type           string                   `json:"type"`
	Notification   *notification.Definition `json:"notification,omitempty"`
	NotificationID string                   `json:"notificationId,omitempty"`
	Delay          int64                    `json:"delay,omitempty"`          // milliseconds, informational
	SnoozeDuration int                      `json:"snoozeDuration,omitempty"` // minutes
	Time           string                   `json:"time,omitempty"`
	Enabled        *bool                    `json:"enabled,omitempty"`
}

// DecodeMessage parses raw into a command. Unknown message types yield a nil
// command and no error so callers can ignore them.
func DecodeMessage(raw []byte) (notification.Command, error) {
	var msg Message
	if err := ffjson.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg.Command()
}

func (m *Message) Command() (notification.Command, error) {
	switch strings.ToUpper(m.Type) {
	case "SCHEDULE":
		if m.Notification == nil {
			return nil, fmt.Errorf("%w: SCHEDULE without notification", ErrMalformedMessage)
		}
		return notification.ScheduleCommand{
			Definition: m.Notification,
			Delay:      time.Duration(m.Delay) * time.Millisecond,
		}, nil
	case "CANCEL":
		id := m.targetID()
		if id == "" {
			return nil, fmt.Errorf("%w: CANCEL without notificationId", ErrMalformedMessage)
		}
		return notification.CancelCommand{ID: id}, nil
	case "SNOOZE":
		id := m.targetID()
		if id == "" {
			return nil, fmt.Errorf("%w: SNOOZE without notification", ErrMalformedMessage)
		}
		return notification.SnoozeCommand{ID: id, Minutes: m.SnoozeDuration}, nil
	case "UPDATE_TIME":
		id := m.targetID()
		if id == "" || m.Time == "" {
			return nil, fmt.Errorf("%w: UPDATE_TIME needs notificationId and time", ErrMalformedMessage)
		}
		return notification.UpdateTimeCommand{ID: id, Time: m.Time}, nil
	case "TOGGLE":
		id := m.targetID()
		if id == "" || m.Enabled == nil {
			return nil, fmt.Errorf("%w: TOGGLE needs notificationId and enabled", ErrMalformedMessage)
		}
		return notification.ToggleCommand{ID: id, Enabled: *m.Enabled}, nil
	case "SCHEDULE_DEFAULTS":
		return notification.ScheduleDefaultsCommand{}, nil
	}
	return nil, nil
}

func (m *Message) targetID() string {
	if m.NotificationID != "" {
		return m.NotificationID
	}
	if m.Notification != nil {
		return m.Notification.ID
	}
	return ""
}
