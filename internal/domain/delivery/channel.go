package delivery

import (
	"context"
	"time"

	"habit_notifier/internal/domain/notification"
)

// Permission mirrors the host notification permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Payload travels with a delivered notification so a click can be routed
// without a store lookup.
type Payload struct {
	Type           notification.Type     `json:"type"`
	NotificationID string                `json:"notificationId"`
	Actions        []notification.Action `json:"actions"`
	Date           time.Time             `json:"date"`
}

// Presentation is everything a channel needs to show one notification.
type Presentation struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	Tag                string // equals the definition id; a newer delivery with the same tag replaces the older one
	RequireInteraction bool
	Actions            []notification.Action
	Data               Payload
}

// Channel defines the host notification facility.
// This decouples the scheduler from the concrete desktop/chat/console backends.
type Channel interface {
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// Present fails with notification.ErrPermissionDenied unless permission is granted.
	Present(ctx context.Context, p Presentation) error
	Dismiss(ctx context.Context, tag string) error
	// Open navigates to or focuses the app at url.
	Open(ctx context.Context, url string) error
}

// CommandSink accepts interaction events produced by a channel.
type CommandSink interface {
	Submit(ctx context.Context, cmd notification.Command) error
}

// NewPresentation builds the presentation of def delivered at now.
func NewPresentation(def *notification.Definition, icon, badge string, now time.Time) Presentation {
	actions := append([]notification.Action(nil), def.Actions...)
	return Presentation{
		Title:              def.Title,
		Body:               def.Body,
		Icon:               icon,
		Badge:              badge,
		Tag:                def.ID,
		RequireInteraction: true,
		Actions:            actions,
		Data: Payload{
			Type:           def.Type,
			NotificationID: def.ID,
			Actions:        actions,
			Date:           now,
		},
	}
}
