// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

const (
	callbackPrefix = "notif"
	callbackSep    = "|"
)

// Sender is the part of *telebot.Bot the channel needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Delete(msg telebot.Editable) error
	EditReplyMarkup(msg telebot.Editable, markup *telebot.ReplyMarkup) (*telebot.Message, error)
}

// Channel delivers notifications as chat messages with inline action buttons.
type Channel struct {
	sender  Sender
	chat    *telebot.Chat
	limiter *rate.Limiter
	logger  *logrus.Entry

	mu         sync.Mutex
	permission delivery.Permission
	messages   map[string]telebot.StoredMessage // by tag
}

func NewChannel(sender Sender, chatID int64, ratePerSec float64, initial delivery.Permission, logger *logrus.Entry) *Channel {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Channel{
		sender:     sender,
		chat:       &telebot.Chat{ID: chatID},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:     logger,
		permission: initial,
		messages:   make(map[string]telebot.StoredMessage),
	}
}

func (c *Channel) Permission(ctx context.Context) (delivery.Permission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission, nil
}

// RequestPermission cannot prompt in a chat; the user answers with /start or /mute.
func (c *Channel) RequestPermission(ctx context.Context) (delivery.Permission, error) {
	c.mu.Lock()
	perm := c.permission
	c.mu.Unlock()
	if perm != delivery.PermissionDefault {
		return perm, nil
	}
	if err := c.send(ctx, "Send /start to receive habit reminders here, or /mute to silence them."); err != nil {
		return perm, err
	}
	return perm, nil
}

// SetPermission records the chat's answer.
func (c *Channel) SetPermission(p delivery.Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permission = p
}

func (c *Channel) ChatID() int64 { return c.chat.ID }

// Present sends p, deleting the previous message sent under the same tag.
func (c *Channel) Present(ctx context.Context, p delivery.Presentation) error {
	c.mu.Lock()
	perm := c.permission
	prev, hasPrev := c.messages[p.Tag]
	c.mu.Unlock()
	if perm != delivery.PermissionGranted {
		return notification.ErrPermissionDenied
	}

	if hasPrev {
		if err := c.sender.Delete(prev); err != nil {
			c.logger.WithError(err).WithField("tag", p.Tag).Debug("Previous message already gone")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	msg, err := c.sender.Send(c.chat, formatText(p), &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: buildMarkup(p),
	})
	if err != nil {
		return fmt.Errorf("failed to send notification %q: %w", p.Tag, err)
	}

	c.mu.Lock()
	c.messages[p.Tag] = telebot.StoredMessage{MessageID: strconv.Itoa(msg.ID), ChatID: c.chat.ID}
	c.mu.Unlock()
	return nil
}

// Dismiss strips the inline keyboard so the message can no longer be acted on.
func (c *Channel) Dismiss(ctx context.Context, tag string) error {
	c.mu.Lock()
	msg, ok := c.messages[tag]
	delete(c.messages, tag)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if _, err := c.sender.EditReplyMarkup(msg, nil); err != nil {
		return fmt.Errorf("failed to dismiss %q: %w", tag, err)
	}
	return nil
}

// Open replies with the link, since a bot cannot navigate the user's browser.
func (c *Channel) Open(ctx context.Context, url string) error {
	return c.send(ctx, url)
}

func (c *Channel) send(ctx context.Context, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.sender.Send(c.chat, text)
	return err
}

func formatText(p delivery.Presentation) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</b>")
	if p.Body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(p.Body))
	}
	return b.String()
}

// buildMarkup puts one button per action on the first row and "Open" below.
func buildMarkup(p delivery.Presentation) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	var row []telebot.InlineButton
	for _, a := range p.Actions {
		row = append(row, telebot.InlineButton{Text: a.Title, Data: callbackData(p.Tag, a.Action)})
	}
	open := []telebot.InlineButton{{Text: "Open", Data: callbackData(p.Tag, notification.ActionOpen)}}
	if len(row) > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, row)
	}
	markup.InlineKeyboard = append(markup.InlineKeyboard, open)
	return markup
}

func callbackData(id, action string) string {
	return strings.Join([]string{callbackPrefix, id, action}, callbackSep)
}
