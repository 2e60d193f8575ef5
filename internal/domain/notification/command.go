package notification

import "time"

// Command is an event processed by the background worker. The set is closed.
type Command interface {
	commandName() string
}

// CommandName returns the wire/log name of c.
func CommandName(c Command) string {
	return c.commandName()
}

type ScheduleCommand struct {
	Definition *Definition
	Delay      time.Duration // informational, the fire instant comes from Definition.Time
}

type CancelCommand struct {
	ID string
}

// SnoozeCommand snoozes ID. Minutes <= 0 means the stored SnoozeDuration.
type SnoozeCommand struct {
	ID      string
	Minutes int
}

type UpdateTimeCommand struct {
	ID   string
	Time string
}

type ToggleCommand struct {
	ID      string
	Enabled bool
}

type ScheduleDefaultsCommand struct{}

// ClickCommand is a user interaction with a delivered notification.
// Action is empty for a body click.
type ClickCommand struct {
	NotificationID string
	Action         string
}

// WakeCommand triggers the periodic catch-up check.
type WakeCommand struct {
	At time.Time
}

// FireCommand delivers an expired timer. Generation identifies the arming,
// so a fire for a timer that was replaced or cleared is dropped.
type FireCommand struct {
	ID         string
	Snooze     bool
	Generation uint64
}

func (ScheduleCommand) commandName() string         { return "SCHEDULE" }
func (CancelCommand) commandName() string           { return "CANCEL" }
func (SnoozeCommand) commandName() string           { return "SNOOZE" }
func (UpdateTimeCommand) commandName() string       { return "UPDATE_TIME" }
func (ToggleCommand) commandName() string           { return "TOGGLE" }
func (ScheduleDefaultsCommand) commandName() string { return "SCHEDULE_DEFAULTS" }
func (ClickCommand) commandName() string            { return "CLICK" }
func (WakeCommand) commandName() string             { return "WAKE" }
func (FireCommand) commandName() string             { return "FIRE" }
