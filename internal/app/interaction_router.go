package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/clock"
	"habit_notifier/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// InteractionRouter turns clicks on delivered notifications into navigation
// or scheduler commands.
type InteractionRouter struct {
	repo         notification.Repository
	channel      delivery.Channel
	scheduler    Scheduler
	clock        clock.Clock
	baseURL      string
	storeTimeout time.Duration
	logger       *logrus.Entry
}

func NewInteractionRouter(
	repo notification.Repository,
	channel delivery.Channel,
	scheduler Scheduler,
	clk clock.Clock,
	baseURL string,
	storeTimeout time.Duration,
	logger *logrus.Entry,
) *InteractionRouter {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &InteractionRouter{
		repo:         repo,
		channel:      channel,
		scheduler:    scheduler,
		clock:        clk,
		baseURL:      strings.TrimRight(baseURL, "/"),
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// HandleClick records the interaction, dismisses the notification and then
// acts on the resolved route. Only the scheduler command can fail the call.
func (r *InteractionRouter) HandleClick(ctx context.Context, click notification.ClickCommand) error {
	route := notification.ResolveAction(click.Action)
	logger := r.logger.WithFields(logrus.Fields{
		"notification_id": click.NotificationID,
		"action":          click.Action,
		"route":           route.Kind.String(),
	})
	metrics.Interactions.WithLabelValues(route.Kind.String()).Inc()

	r.recordInteraction(ctx, logger, click, route)

	if err := r.channel.Dismiss(ctx, click.NotificationID); err != nil {
		logger.WithError(err).Warn("Failed to dismiss notification")
	}

	switch route.Kind {
	case notification.RouteNavigate:
		url := r.URLFor(route.Target)
		if err := r.channel.Open(ctx, url); err != nil {
			logger.WithError(err).WithField("url", url).Warn("Failed to open app")
		}
		return nil
	case notification.RouteSnooze:
		return r.scheduler.Snooze(ctx, click.NotificationID)
	case notification.RouteSkip:
		logger.Debug("Notification skipped")
		return nil
	}
	return nil
}

// URLFor joins an in-app target to the configured base URL.
func (r *InteractionRouter) URLFor(target string) string {
	if target == "" {
		target = notification.DefaultTarget
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return r.baseURL + target
}

// recordInteraction fills the click fields of the most recent log entry.
// Entries that already carry a click are left alone. A snooze is recorded only
// when the definition allows it, matching what the scheduler will do.
func (r *InteractionRouter) recordInteraction(ctx context.Context, logger *logrus.Entry, click notification.ClickCommand, route notification.Route) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	entry, err := r.repo.LatestLogForDefinition(ctx, click.NotificationID)
	if err != nil {
		if !errors.Is(err, notification.ErrLogNotFound) {
			metrics.StoreErrors.WithLabelValues("latest_log").Inc()
			logger.WithError(err).Warn("Could not load delivery log for interaction")
		}
		return
	}
	if entry.Interacted() {
		return
	}

	action := click.Action
	if action == "" {
		action = notification.ActionOpen
	}
	snoozed := false
	snoozeMinutes := 0
	if route.Kind == notification.RouteSnooze {
		def, err := r.repo.Get(ctx, click.NotificationID)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Could not load notification for snooze")
		case def.Enabled && def.SnoozeEnabled:
			snoozed = true
			snoozeMinutes = def.SnoozeDuration
		}
	}
	entry.RecordInteraction(r.clock.Now(), action, snoozed, snoozeMinutes)

	if err := r.repo.UpdateLog(ctx, entry); err != nil {
		metrics.StoreErrors.WithLabelValues("update_log").Inc()
		logger.WithError(err).Warn("Could not record interaction")
	}
}
