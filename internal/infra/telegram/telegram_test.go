package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"habit_notifier/internal/app"
	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sent struct {
	text   interface{}
	markup *telebot.ReplyMarkup
}

type fakeSender struct {
	nextID  int
	sent    []sent
	deleted []telebot.Editable
	edited  []telebot.Editable
	sendErr error
}

func (s *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	var markup *telebot.ReplyMarkup
	for _, o := range opts {
		if so, ok := o.(*telebot.SendOptions); ok {
			markup = so.ReplyMarkup
		}
	}
	s.sent = append(s.sent, sent{text: what, markup: markup})
	s.nextID++
	return &telebot.Message{ID: s.nextID}, nil
}

func (s *fakeSender) Delete(msg telebot.Editable) error {
	s.deleted = append(s.deleted, msg)
	return nil
}

func (s *fakeSender) EditReplyMarkup(msg telebot.Editable, markup *telebot.ReplyMarkup) (*telebot.Message, error) {
	s.edited = append(s.edited, msg)
	return &telebot.Message{}, nil
}

func lunchPresentation() delivery.Presentation {
	for _, def := range notification.Defaults() {
		if def.ID == "lunch-logging" {
			return delivery.NewPresentation(def, "", "", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
		}
	}
	return delivery.Presentation{}
}

func TestChannel_PresentRequiresPermission(t *testing.T) {
	sender := &fakeSender{}
	ch := NewChannel(sender, 42, 100, delivery.PermissionDefault, logger.Discard())

	err := ch.Present(context.Background(), lunchPresentation())
	assert.ErrorIs(t, err, notification.ErrPermissionDenied)
	assert.Empty(t, sender.sent)

	ch.SetPermission(delivery.PermissionGranted)
	require.NoError(t, ch.Present(context.Background(), lunchPresentation()))
	assert.Len(t, sender.sent, 1)
}

func TestChannel_ReplacesPreviousMessageForTag(t *testing.T) {
	sender := &fakeSender{}
	ch := NewChannel(sender, 42, 100, delivery.PermissionGranted, logger.Discard())
	ctx := context.Background()
	p := lunchPresentation()

	require.NoError(t, ch.Present(ctx, p))
	require.NoError(t, ch.Present(ctx, p))

	require.Len(t, sender.deleted, 1)
	assert.Equal(t, telebot.StoredMessage{MessageID: "1", ChatID: 42}, sender.deleted[0])
	assert.Equal(t, "<b>Lunch time</b>\nRemember to log what you had for lunch.", sender.sent[1].text)

	require.NoError(t, ch.Dismiss(ctx, p.Tag))
	require.NoError(t, ch.Dismiss(ctx, p.Tag))
	require.Len(t, sender.edited, 1)
	assert.Equal(t, telebot.StoredMessage{MessageID: "2", ChatID: 42}, sender.edited[0])
}

func TestChannel_OpenSendsLink(t *testing.T) {
	sender := &fakeSender{}
	ch := NewChannel(sender, 42, 100, delivery.PermissionGranted, logger.Discard())
	require.NoError(t, ch.Open(context.Background(), "http://localhost:3000/meals"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "http://localhost:3000/meals", sender.sent[0].text)
}

func TestChannel_SendFailure(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("telegram: Forbidden: bot was blocked by the user (403)")}
	ch := NewChannel(sender, 42, 100, delivery.PermissionGranted, logger.Discard())
	assert.Error(t, ch.Present(context.Background(), lunchPresentation()))
}

func TestBuildMarkup(t *testing.T) {
	markup := buildMarkup(lunchPresentation())
	require.Len(t, markup.InlineKeyboard, 2)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "notif|lunch-logging|log-meal", row[0].Data)
	assert.Equal(t, "notif|lunch-logging|skip", row[1].Data)
	assert.Equal(t, "notif|lunch-logging|open", markup.InlineKeyboard[1][0].Data)
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data    string
		want    notification.ClickCommand
		wantErr bool
	}{
		{data: "notif|water-reminder|snooze", want: notification.ClickCommand{NotificationID: "water-reminder", Action: "snooze"}},
		{data: "\fnotif|water-reminder|log-water", want: notification.ClickCommand{NotificationID: "water-reminder", Action: "log-water"}},
		{data: "notif|water-reminder|", want: notification.ClickCommand{NotificationID: "water-reminder"}},
		{data: "ans_yes_12", wantErr: true},
		{data: "notif||snooze", wantErr: true},
		{data: "notif|a|b|c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallbackData(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsCommand(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		args    []string
		want    notification.Command
		wantErr bool
	}{
		{"enable", "/enable", []string{"water-reminder"}, notification.ToggleCommand{ID: "water-reminder", Enabled: true}, false},
		{"disable", "/disable", []string{"water-reminder"}, notification.ToggleCommand{ID: "water-reminder"}, false},
		{"time", "/time", []string{"lunch-logging", "12:30"}, notification.UpdateTimeCommand{ID: "lunch-logging", Time: "12:30"}, false},
		{"snooze default", "/snooze", []string{"evening-journal"}, notification.SnoozeCommand{ID: "evening-journal"}, false},
		{"snooze minutes", "/snooze", []string{"evening-journal", "25"}, notification.SnoozeCommand{ID: "evening-journal", Minutes: 25}, false},
		{"defaults", "/defaults", nil, notification.ScheduleDefaultsCommand{}, false},
		{"enable without id", "/enable", nil, nil, true},
		{"time missing value", "/time", []string{"lunch-logging"}, nil, true},
		{"snooze bad minutes", "/snooze", []string{"x", "soon"}, nil, true},
		{"snooze negative", "/snooze", []string{"x", "-5"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settingsCommand(tt.cmd, tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatStatus(t *testing.T) {
	defs := []*notification.Definition{
		{ID: "water-reminder", Time: "21:00", Enabled: true},
		{ID: "weight-tracking", Time: "06:00", Enabled: false},
	}
	armed := []app.ArmedTimer{
		{ID: "water-reminder", FireAt: time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)},
		{ID: "water-reminder", Snooze: true, FireAt: time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC)},
	}

	got := formatStatus(defs, armed)
	assert.Equal(t, "--- Reminders ---\n"+
		"06:00 weight-tracking (off)\n"+
		"21:00 water-reminder (on), next Mon 21:00, snoozed until 14:10\n", got)

	assert.Contains(t, formatStatus(nil, nil), "/defaults")
}
