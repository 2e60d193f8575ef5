package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand = errors.New("unknown worker command")
	ErrWorkerStopped  = errors.New("worker stopped")
)

// ClickHandler handles interactions with delivered notifications.
type ClickHandler interface {
	HandleClick(ctx context.Context, click notification.ClickCommand) error
}

// AssetCache installs the current asset version and discards stale ones.
type AssetCache interface {
	Activate(ctx context.Context) error
}

type envelope struct {
	id    string
	cmd   notification.Command
	reply chan error
}

// Worker is the long-lived background context. Every inbound event becomes a
// command processed one at a time by Run.
type Worker struct {
	repo            notification.Repository
	scheduler       Scheduler
	clicks          ClickHandler
	cache           AssetCache
	defaultsOnStart bool
	logger          *logrus.Entry

	queue chan envelope
	done  chan struct{}
}

func NewWorker(
	repo notification.Repository,
	scheduler Scheduler,
	clicks ClickHandler,
	cache AssetCache,
	defaultsOnStart bool,
	logger *logrus.Entry,
) *Worker {
	return &Worker{
		repo:            repo,
		scheduler:       scheduler,
		clicks:          clicks,
		cache:           cache,
		defaultsOnStart: defaultsOnStart,
		logger:          logger,
		queue:           make(chan envelope, 64),
		done:            make(chan struct{}),
	}
}

// Activate installs storage, refreshes cached assets and restores timers.
// Defaults are seeded only into an empty store so user edits survive restarts.
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.repo.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to install notification store: %w", err)
	}
	if w.cache != nil {
		if err := w.cache.Activate(ctx); err != nil {
			w.logger.WithError(err).Warn("Asset cache activation failed")
		}
	}

	if w.defaultsOnStart {
		defs, err := w.repo.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", notification.ErrStoreUnavailable, err)
		}
		if len(defs) == 0 {
			if err := w.scheduler.ScheduleDefaults(ctx); err != nil {
				return err
			}
		}
	}

	if err := w.scheduler.Restore(ctx); err != nil {
		return err
	}
	w.logger.Info("Worker activated")
	return nil
}

// Run consumes the command queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("Worker command loop started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker command loop stopped")
			return
		case env := <-w.queue:
			env.reply <- w.process(ctx, env)
		}
	}
}

// Submit enqueues cmd and waits for its result.
func (w *Worker) Submit(ctx context.Context, cmd notification.Command) error {
	env := envelope{id: uuid.NewString(), cmd: cmd, reply: make(chan error, 1)}
	select {
	case w.queue <- env:
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.reply:
		return err
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) process(ctx context.Context, env envelope) error {
	name := notification.CommandName(env.cmd)
	start := time.Now()
	err := w.Process(ctx, env.cmd)
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	entry := w.logger.WithFields(logrus.Fields{
		"command_id": env.id,
		"command":    name,
	})
	if err != nil {
		entry.WithError(err).Warn("Command failed")
	} else {
		entry.Debug("Command processed")
	}
	return err
}

// Process is the single dispatch point for every command.
func (w *Worker) Process(ctx context.Context, cmd notification.Command) error {
	switch c := cmd.(type) {
	case notification.ScheduleCommand:
		return w.scheduler.Schedule(ctx, c.Definition)
	case notification.CancelCommand:
		return w.scheduler.Cancel(ctx, c.ID)
	case notification.SnoozeCommand:
		if c.Minutes > 0 {
			return w.scheduler.SnoozeFor(ctx, c.ID, c.Minutes)
		}
		return w.scheduler.Snooze(ctx, c.ID)
	case notification.UpdateTimeCommand:
		return w.scheduler.UpdateTime(ctx, c.ID, c.Time)
	case notification.ToggleCommand:
		return w.scheduler.Toggle(ctx, c.ID, c.Enabled)
	case notification.ScheduleDefaultsCommand:
		return w.scheduler.ScheduleDefaults(ctx)
	case notification.ClickCommand:
		return w.clicks.HandleClick(ctx, c)
	case notification.WakeCommand:
		return w.scheduler.CatchUp(ctx, c.At)
	case notification.FireCommand:
		return w.scheduler.Fire(ctx, c)
	}
	return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}
