package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/clock"
	"habit_notifier/internal/infra/logger"
)

// memoryRepo is an in-memory notification.Repository with error injection.
type memoryRepo struct {
	mu   sync.Mutex
	defs map[string]*notification.Definition
	logs []*notification.LogEntry

	failGet    error
	failGetAll error
	failPut    error
	failAppend error
	failUpdate error
	migrated   int

	afterGet func(id string) // runs outside the lock
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{defs: make(map[string]*notification.Definition)}
}

func (r *memoryRepo) Migrate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrated++
	return nil
}

func (r *memoryRepo) Put(ctx context.Context, def *notification.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPut != nil {
		return r.failPut
	}
	r.defs[def.ID] = def.Clone()
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*notification.Definition, error) {
	r.mu.Lock()
	hook := r.afterGet
	def, err := r.getLocked(id)
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return def, err
}

func (r *memoryRepo) getLocked(id string) (*notification.Definition, error) {
	if r.failGet != nil {
		return nil, r.failGet
	}
	def, ok := r.defs[id]
	if !ok {
		return nil, notification.ErrDefinitionNotFound
	}
	return def.Clone(), nil
}

func (r *memoryRepo) GetAll(ctx context.Context) ([]*notification.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGetAll != nil {
		return nil, r.failGetAll
	}
	out := make([]*notification.Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (r *memoryRepo) AppendLog(ctx context.Context, e *notification.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		return r.failAppend
	}
	for _, l := range r.logs {
		if l.ID == e.ID {
			return notification.ErrDuplicateLog
		}
	}
	c := *e
	r.logs = append(r.logs, &c)
	return nil
}

func (r *memoryRepo) UpdateLog(ctx context.Context, e *notification.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	for i, l := range r.logs {
		if l.ID == e.ID {
			c := *e
			r.logs[i] = &c
			return nil
		}
	}
	return notification.ErrLogNotFound
}

func (r *memoryRepo) GetLogsForDefinition(ctx context.Context, id string) ([]*notification.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*notification.LogEntry, 0)
	for _, l := range r.logs {
		if l.NotificationID == id {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memoryRepo) LatestLogForDefinition(ctx context.Context, id string) (*notification.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *notification.LogEntry
	for _, l := range r.logs {
		if l.NotificationID != id {
			continue
		}
		if latest == nil || !l.TriggeredAt.Before(latest.TriggeredAt) {
			latest = l
		}
	}
	if latest == nil {
		return nil, notification.ErrLogNotFound
	}
	c := *latest
	return &c, nil
}

func (r *memoryRepo) logCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

func (r *memoryRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, id)
}

// fakeChannel records what it was asked to do.
type fakeChannel struct {
	mu         sync.Mutex
	perm       delivery.Permission
	presentErr error
	onPresent  func(p delivery.Presentation)

	presented []delivery.Presentation
	dismissed []string
	opened    []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{perm: delivery.PermissionGranted}
}

func (c *fakeChannel) Permission(ctx context.Context) (delivery.Permission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perm, nil
}

func (c *fakeChannel) RequestPermission(ctx context.Context) (delivery.Permission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.perm == delivery.PermissionDefault {
		c.perm = delivery.PermissionGranted
	}
	return c.perm, nil
}

func (c *fakeChannel) Present(ctx context.Context, p delivery.Presentation) error {
	c.mu.Lock()
	if c.perm != delivery.PermissionGranted {
		c.mu.Unlock()
		return notification.ErrPermissionDenied
	}
	if c.presentErr != nil {
		err := c.presentErr
		c.mu.Unlock()
		return err
	}
	c.presented = append(c.presented, p)
	hook := c.onPresent
	c.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (c *fakeChannel) Dismiss(ctx context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissed = append(c.dismissed, tag)
	return nil
}

func (c *fakeChannel) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, url)
	return nil
}

func (c *fakeChannel) setOnPresent(hook func(p delivery.Presentation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPresent = hook
}

func (c *fakeChannel) presentedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.presented)
}

func (c *fakeChannel) setPermission(p delivery.Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perm = p
}

type schedulerFixture struct {
	svc   *SchedulerService
	repo  *memoryRepo
	ch    *fakeChannel
	clock *clock.Fake
}

func newSchedulerFixture(t *testing.T, now time.Time) *schedulerFixture {
	t.Helper()
	repo := newMemoryRepo()
	ch := newFakeChannel()
	clk := clock.NewFake(now)
	svc := NewSchedulerService(repo, ch, clk, logger.Discard(), SchedulerConfig{
		UserID:          "local",
		MissedFireGrace: 15 * time.Minute,
	})
	t.Cleanup(svc.Stop)
	return &schedulerFixture{svc: svc, repo: repo, ch: ch, clock: clk}
}

func waterDefinition() *notification.Definition {
	return &notification.Definition{
		ID:    "water-reminder",
		Time:  "21:00",
		Title: "Water check",
		Body:  "Log your water",
		Type:  notification.TypeWaterReminder,
		Actions: []notification.Action{
			{Action: notification.ActionLogWater, Title: "Log water"},
			{Action: notification.ActionSnooze, Title: "Snooze"},
		},
		Enabled:        true,
		SnoozeEnabled:  true,
		SnoozeDuration: 10,
	}
}

func day(d, h, m int) time.Time {
	return time.Date(2025, 3, d, h, m, 0, 0, time.UTC)
}
