package console

import (
	"context"
	"sync"

	"habit_notifier/internal/domain/delivery"

	"github.com/sirupsen/logrus"
)

// Channel writes notifications to the log. Permission is always granted and
// clicks arrive only through the control API.
type Channel struct {
	logger *logrus.Entry

	mu      sync.Mutex
	visible map[string]delivery.Presentation
}

func NewChannel(logger *logrus.Entry) *Channel {
	return &Channel{
		logger:  logger,
		visible: make(map[string]delivery.Presentation),
	}
}

func (c *Channel) Permission(ctx context.Context) (delivery.Permission, error) {
	return delivery.PermissionGranted, nil
}

func (c *Channel) RequestPermission(ctx context.Context) (delivery.Permission, error) {
	return delivery.PermissionGranted, nil
}

func (c *Channel) Present(ctx context.Context, p delivery.Presentation) error {
	c.mu.Lock()
	_, replaced := c.visible[p.Tag]
	c.visible[p.Tag] = p
	c.mu.Unlock()

	actions := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		actions = append(actions, a.Action)
	}
	c.logger.WithFields(logrus.Fields{
		"tag":      p.Tag,
		"type":     p.Data.Type,
		"title":    p.Title,
		"body":     p.Body,
		"actions":  actions,
		"replaced": replaced,
	}).Info("NOTIFICATION")
	return nil
}

func (c *Channel) Dismiss(ctx context.Context, tag string) error {
	c.mu.Lock()
	_, ok := c.visible[tag]
	delete(c.visible, tag)
	c.mu.Unlock()
	if ok {
		c.logger.WithField("tag", tag).Info("Notification dismissed")
	}
	return nil
}

func (c *Channel) Open(ctx context.Context, url string) error {
	c.logger.WithField("url", url).Info("Open app")
	return nil
}

// Visible returns the tags currently shown.
func (c *Channel) Visible() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	tags := make([]string, 0, len(c.visible))
	for tag := range c.visible {
		tags = append(tags, tag)
	}
	return tags
}
