// internal/infra/desktop/channel.go
package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	notifyObj   = "org.freedesktop.Notifications"
	notifyIntf  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	appName     = "Habit Tracker"
	defaultKey  = "default"
	keySep      = "|"
	urgencyNorm = byte(1)
)

// Server is the subset of the freedesktop notification server the channel uses.
type Server interface {
	Notify(ctx context.Context, replacesID uint32, icon, summary, body string, actions []string, hints map[string]dbus.Variant, expire int32) (uint32, error)
	Close(ctx context.Context, id uint32) error
	Capabilities(ctx context.Context) ([]string, error)
}

// Channel delivers notifications to the desktop notification server.
type Channel struct {
	server Server
	open   func(url string) error
	logger *logrus.Entry

	mu    sync.Mutex
	byTag map[string]uint32
	byID  map[uint32]string
}

func NewChannel(server Server, logger *logrus.Entry) *Channel {
	return &Channel{
		server: server,
		open:   xdgOpen,
		logger: logger,
		byTag:  make(map[string]uint32),
		byID:   make(map[uint32]string),
	}
}

// Permission is granted when the server is reachable and supports actions.
func (c *Channel) Permission(ctx context.Context) (delivery.Permission, error) {
	caps, err := c.server.Capabilities(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Notification server unreachable")
		return delivery.PermissionDenied, nil
	}
	for _, cp := range caps {
		if cp == "actions" {
			return delivery.PermissionGranted, nil
		}
	}
	return delivery.PermissionDenied, nil
}

func (c *Channel) RequestPermission(ctx context.Context) (delivery.Permission, error) {
	return c.Permission(ctx)
}

// Present shows p, replacing any notification still visible under the same tag.
func (c *Channel) Present(ctx context.Context, p delivery.Presentation) error {
	perm, err := c.Permission(ctx)
	if err != nil {
		return err
	}
	if perm != delivery.PermissionGranted {
		return notification.ErrPermissionDenied
	}

	c.mu.Lock()
	replaces := c.byTag[p.Tag]
	c.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyNorm),
		"resident": dbus.MakeVariant(p.RequireInteraction),
	}
	if p.Icon != "" {
		hints["image-path"] = dbus.MakeVariant(p.Icon)
	}
	expire := int32(-1)
	if p.RequireInteraction {
		expire = 0
	}

	id, err := c.server.Notify(ctx, replaces, p.Icon, p.Title, p.Body, actionPairs(p.Tag, p.Actions), hints, expire)
	if err != nil {
		return fmt.Errorf("cannot send notification %q: %w", p.Tag, err)
	}

	c.mu.Lock()
	if replaces != 0 && replaces != id {
		delete(c.byID, replaces)
	}
	c.byTag[p.Tag] = id
	c.byID[id] = p.Tag
	c.mu.Unlock()
	return nil
}

func (c *Channel) Dismiss(ctx context.Context, tag string) error {
	c.mu.Lock()
	id, ok := c.byTag[tag]
	delete(c.byTag, tag)
	delete(c.byID, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.server.Close(ctx, id)
}

func (c *Channel) Open(ctx context.Context, url string) error {
	return c.open(url)
}

// Listen turns ActionInvoked signals into click commands until ctx is done.
func (c *Channel) Listen(ctx context.Context, signals <-chan *dbus.Signal, sink delivery.CommandSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			cmd, ok := c.handleSignal(sig)
			if !ok {
				continue
			}
			if err := sink.Submit(ctx, cmd); err != nil {
				c.logger.WithError(err).WithField("notification_id", cmd.NotificationID).Error("Failed to submit click")
			}
		}
	}
}

func (c *Channel) handleSignal(sig *dbus.Signal) (notification.ClickCommand, bool) {
	if sig == nil || len(sig.Body) < 2 {
		return notification.ClickCommand{}, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return notification.ClickCommand{}, false
	}

	switch sig.Name {
	case notifyIntf + ".NotificationClosed":
		c.mu.Lock()
		if tag, known := c.byID[id]; known {
			delete(c.byID, id)
			delete(c.byTag, tag)
		}
		c.mu.Unlock()
		return notification.ClickCommand{}, false
	case notifyIntf + ".ActionInvoked":
		key, _ := sig.Body[1].(string)
		if key != defaultKey {
			tag, action, ok := strings.Cut(key, keySep)
			if !ok || tag == "" {
				return notification.ClickCommand{}, false
			}
			return notification.ClickCommand{NotificationID: tag, Action: action}, true
		}

		// body clicks carry no tag, only ids this process presented resolve
		c.mu.Lock()
		tag, known := c.byID[id]
		c.mu.Unlock()
		if !known {
			c.logger.WithField("dbus_id", id).Debug("Body click on a notification from an earlier run")
			return notification.ClickCommand{}, false
		}
		return notification.ClickCommand{NotificationID: tag}, true
	}
	return notification.ClickCommand{}, false
}

// actionPairs flattens actions into the key/label list the server expects,
// prefixed by the default action invoked on a body click. Keys are
// "<tag>|<action>" so a button press still resolves after a restart.
func actionPairs(tag string, actions []notification.Action) []string {
	out := []string{defaultKey, "Open"}
	for _, a := range actions {
		out = append(out, tag+keySep+a.Action, a.Title)
	}
	return out
}

func xdgOpen(url string) error {
	cmd := exec.Command("xdg-open", url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("xdg-open %s: %w", url, err)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// SessionServer talks to the notification server on the session bus.
type SessionServer struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func NewSessionServer() (*SessionServer, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DBus session bus: %w", err)
	}
	return &SessionServer{
		conn: conn,
		obj:  conn.Object(notifyObj, notifyPath),
	}, nil
}

func (s *SessionServer) Notify(ctx context.Context, replacesID uint32, icon, summary, body string, actions []string, hints map[string]dbus.Variant, expire int32) (uint32, error) {
	var id uint32
	err := s.obj.CallWithContext(ctx, notifyIntf+".Notify", 0,
		appName, replacesID, icon, summary, body, actions, hints, expire).Store(&id)
	return id, err
}

func (s *SessionServer) Close(ctx context.Context, id uint32) error {
	return s.obj.CallWithContext(ctx, notifyIntf+".CloseNotification", 0, id).Err
}

func (s *SessionServer) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	err := s.obj.CallWithContext(ctx, notifyIntf+".GetCapabilities", 0).Store(&caps)
	return caps, err
}

// Signals subscribes to ActionInvoked and NotificationClosed.
func (s *SessionServer) Signals() (<-chan *dbus.Signal, error) {
	for _, member := range []string{"ActionInvoked", "NotificationClosed"} {
		if err := s.conn.AddMatchSignal(
			dbus.WithMatchInterface(notifyIntf),
			dbus.WithMatchMember(member),
			dbus.WithMatchObjectPath(notifyPath),
		); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", member, err)
		}
	}
	ch := make(chan *dbus.Signal, 16)
	s.conn.Signal(ch)
	return ch, nil
}

func (s *SessionServer) Disconnect() error { return s.conn.Close() }
