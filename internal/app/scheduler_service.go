// internal/app/scheduler_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"
	"habit_notifier/internal/infra/clock"
	"habit_notifier/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Scheduler defines the operations for managing scheduled notifications.
type Scheduler interface {
	ScheduleDefaults(ctx context.Context) error
	Schedule(ctx context.Context, def *notification.Definition) error
	Cancel(ctx context.Context, id string) error
	UpdateTime(ctx context.Context, id, newTime string) error
	Toggle(ctx context.Context, id string, enabled bool) error
	Snooze(ctx context.Context, id string) error
	SnoozeFor(ctx context.Context, id string, minutes int) error
	CatchUp(ctx context.Context, now time.Time) error
	Fire(ctx context.Context, cmd notification.FireCommand) error
	Restore(ctx context.Context) error
	Armed() []ArmedTimer
}

// SchedulerConfig tunes the scheduler. Zero durations fall back to defaults,
// except MissedFireGrace where zero disables missed-fire recovery.
type SchedulerConfig struct {
	UserID           string
	Icon             string
	Badge            string
	MissedFireGrace  time.Duration
	CatchUpTolerance time.Duration
	StoreTimeout     time.Duration
	DeliveryTimeout  time.Duration
}

type slot int

const (
	slotDaily slot = iota
	slotSnooze
)

func (s slot) String() string {
	if s == slotSnooze {
		return "snooze"
	}
	return "daily"
}

type timerKey struct {
	id   string
	slot slot
}

type armedTimer struct {
	handle   clock.Timer
	at       time.Time // when the callback runs
	due      time.Time // occurrence being delivered
	gen      uint64
	snapshot *notification.Definition
}

// ArmedTimer is a read-only view of an armed timer.
type ArmedTimer struct {
	ID     string    `json:"id"`
	Snooze bool      `json:"snooze"`
	FireAt time.Time `json:"fireAt"`
}

// SchedulerService owns the in-memory timer map. The store stays the source of
// truth; timers are a cache rebuilt by Restore and CatchUp.
//
// With a sink set, expired timers are submitted as FireCommands so deliveries
// run in sequence with every other command. Without one they fire in place.
type SchedulerService struct {
	repo    notification.Repository
	channel delivery.Channel
	clock   clock.Clock
	logger  *logrus.Entry
	cfg     SchedulerConfig

	mu       sync.Mutex
	sink     delivery.CommandSink
	gen      uint64
	timers   map[timerKey]*armedTimer
	epochs   map[string]uint64 // bumped on every clear
	inflight map[string]struct{}
}

func NewSchedulerService(
	repo notification.Repository,
	channel delivery.Channel,
	clk clock.Clock,
	logger *logrus.Entry,
	cfg SchedulerConfig,
) *SchedulerService {
	if cfg.CatchUpTolerance <= 0 {
		cfg.CatchUpTolerance = time.Minute
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	return &SchedulerService{
		repo:     repo,
		channel:  channel,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		timers:   make(map[timerKey]*armedTimer),
		epochs:   make(map[string]uint64),
		inflight: make(map[string]struct{}),
	}
}

// SetSink routes timer fires through sink, normally the worker.
func (s *SchedulerService) SetSink(sink delivery.CommandSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// ScheduleDefaults seeds the default catalog and arms every enabled entry.
// Without granted permission it does nothing.
func (s *SchedulerService) ScheduleDefaults(ctx context.Context) error {
	perm, err := s.channel.Permission(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Could not read notification permission, skipping defaults")
		return nil
	}
	if perm != delivery.PermissionGranted {
		s.logger.WithField("permission", perm).Info("Notification permission not granted, skipping defaults")
		return nil
	}

	for _, def := range notification.Defaults() {
		if err := s.Schedule(ctx, def); err != nil {
			return fmt.Errorf("failed to schedule default %s: %w", def.ID, err)
		}
	}
	s.logger.Info("Default notifications scheduled")
	return nil
}

// Schedule persists def and, when enabled, arms its daily timer.
func (s *SchedulerService) Schedule(ctx context.Context, def *notification.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def = def.Clone()

	if err := s.put(ctx, def); err != nil {
		return err
	}
	if !def.Enabled {
		s.clear(def.ID)
		return nil
	}
	s.armDaily(ctx, def, true)
	return nil
}

// Cancel disables id and clears its timers. Unknown ids are ignored.
// Timers are cleared even when the store cannot be updated.
func (s *SchedulerService) Cancel(ctx context.Context, id string) error {
	def, err := s.get(ctx, id)
	if err == nil && def.Enabled {
		def.Enabled = false
		err = s.put(ctx, def)
	}
	s.clear(id)

	if err != nil && !errors.Is(err, notification.ErrDefinitionNotFound) {
		return err
	}
	return nil
}

func (s *SchedulerService) UpdateTime(ctx context.Context, id, newTime string) error {
	if _, err := notification.ParseTimeOfDay(newTime); err != nil {
		return err
	}
	def, err := s.get(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrDefinitionNotFound) {
			return fmt.Errorf("%w: %s", notification.ErrUnknownDefinitionID, id)
		}
		return err
	}

	def.Time = newTime
	if err := s.put(ctx, def); err != nil {
		return err
	}
	if def.Enabled {
		s.armDaily(ctx, def, true)
	}
	return nil
}

// Toggle enables or disables id. Unknown ids are ignored.
func (s *SchedulerService) Toggle(ctx context.Context, id string, enabled bool) error {
	def, err := s.get(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrDefinitionNotFound) {
			return nil
		}
		return err
	}

	def.Enabled = enabled
	if err := s.put(ctx, def); err != nil {
		return err
	}
	if enabled {
		s.armDaily(ctx, def, true)
	} else {
		s.clear(id)
	}
	return nil
}

// Snooze re-delivers id once after its configured snooze duration.
func (s *SchedulerService) Snooze(ctx context.Context, id string) error {
	return s.SnoozeFor(ctx, id, 0)
}

// SnoozeFor re-delivers id once after minutes. The daily timer is left alone,
// so the next regular delivery stays on the configured time.
func (s *SchedulerService) SnoozeFor(ctx context.Context, id string, minutes int) error {
	def, err := s.get(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrDefinitionNotFound) {
			s.logger.WithField("notification_id", id).Debug("Snooze for unknown notification ignored")
			return nil
		}
		return err
	}
	if !def.Enabled || !def.SnoozeEnabled {
		s.logger.WithFields(logrus.Fields{
			"notification_id": id,
			"enabled":         def.Enabled,
			"snooze_enabled":  def.SnoozeEnabled,
		}).Info("Snooze not allowed, ignoring")
		return nil
	}
	if minutes <= 0 {
		minutes = def.SnoozeDuration
	}

	at := s.clock.Now().Add(time.Duration(minutes) * time.Minute)
	s.install(timerKey{id: id, slot: slotSnooze}, at, at, def)
	s.logger.WithFields(logrus.Fields{
		"notification_id": id,
		"minutes":         minutes,
		"fire_at":         at,
	}).Info("Notification snoozed")
	return nil
}

// CatchUp delivers every enabled definition whose time lies within the
// tolerance window of now and was not delivered yet, and re-arms any daily
// timer that went missing. Safe to call repeatedly.
func (s *SchedulerService) CatchUp(ctx context.Context, now time.Time) error {
	metrics.CatchUpRuns.Inc()

	defs, err := s.getAll(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		tod, err := notification.ParseTimeOfDay(def.Time)
		if err != nil {
			s.logger.WithError(err).WithField("notification_id", def.ID).Warn("Stored notification has invalid time")
			continue
		}
		if due, ok := notification.DueWithin(tod, now, s.cfg.CatchUpTolerance); ok {
			s.deliver(ctx, def, due, true)
		}
		if !s.hasDaily(def.ID) {
			s.armDaily(ctx, def, false)
		}
	}
	return nil
}

// Fire delivers the timer named by cmd if it is still the armed one.
func (s *SchedulerService) Fire(ctx context.Context, cmd notification.FireCommand) error {
	key := timerKey{id: cmd.ID, slot: slotDaily}
	if cmd.Snooze {
		key.slot = slotSnooze
	}
	s.fire(ctx, key, cmd.Generation)
	return nil
}

// Restore arms every enabled stored definition, recovering occurrences missed
// within the grace period.
func (s *SchedulerService) Restore(ctx context.Context) error {
	defs, err := s.getAll(ctx)
	if err != nil {
		return err
	}
	armed := 0
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if _, err := notification.ParseTimeOfDay(def.Time); err != nil {
			s.logger.WithError(err).WithField("notification_id", def.ID).Warn("Stored notification has invalid time")
			continue
		}
		s.armDaily(ctx, def, true)
		armed++
	}
	s.logger.WithFields(logrus.Fields{"stored": len(defs), "armed": armed}).Info("Notification timers restored")
	return nil
}

// Armed returns the armed timers ordered by fire time.
func (s *SchedulerService) Armed() []ArmedTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ArmedTimer, 0, len(s.timers))
	for k, t := range s.timers {
		out = append(out, ArmedTimer{ID: k.id, Snooze: k.slot == slotSnooze, FireAt: t.at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// NextFire returns when the daily timer of id runs.
func (s *SchedulerService) NextFire(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[timerKey{id: id, slot: slotDaily}]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

// Stop disarms every timer.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.handle.Stop()
		delete(s.timers, k)
	}
	metrics.ArmedTimers.Set(0)
}

// --- timers ---

// armDaily arms the next regular occurrence. With allowMissed, an occurrence
// that passed within the grace period and was never delivered fires right away.
func (s *SchedulerService) armDaily(ctx context.Context, def *notification.Definition, allowMissed bool) {
	tod, err := notification.ParseTimeOfDay(def.Time)
	if err != nil {
		s.logger.WithError(err).WithField("notification_id", def.ID).Error("Cannot arm notification")
		return
	}
	key := timerKey{id: def.ID, slot: slotDaily}
	now := s.clock.Now()

	if allowMissed && s.cfg.MissedFireGrace > 0 {
		prev := notification.PreviousFireTime(tod, now)
		if now.Sub(prev) <= s.cfg.MissedFireGrace && !s.alreadyDelivered(ctx, def.ID, prev) {
			s.logger.WithFields(logrus.Fields{
				"notification_id": def.ID,
				"due":             prev,
			}).Info("Occurrence missed within grace period, firing now")
			s.install(key, now, prev, def)
			return
		}
	}

	next := notification.NextFireTime(tod, now)
	s.install(key, next, next, def)
	s.logger.WithFields(logrus.Fields{
		"notification_id": def.ID,
		"fire_at":         next,
	}).Debug("Notification armed")
}

// install replaces the timer in key's slot.
func (s *SchedulerService) install(key timerKey, at, due time.Time, def *notification.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(key, at, due, def)
}

func (s *SchedulerService) installLocked(key timerKey, at, due time.Time, def *notification.Definition) {
	if old, ok := s.timers[key]; ok {
		old.handle.Stop()
	}
	s.gen++
	gen := s.gen
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t := &armedTimer{at: at, due: due, gen: gen, snapshot: def.Clone()}
	s.timers[key] = t
	t.handle = s.clock.AfterFunc(delay, func() { s.expire(key, gen) })
	metrics.ArmedTimers.Set(float64(len(s.timers)))
}

func (s *SchedulerService) clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[id]++
	for _, sl := range []slot{slotDaily, slotSnooze} {
		key := timerKey{id: id, slot: sl}
		if t, ok := s.timers[key]; ok {
			t.handle.Stop()
			delete(s.timers, key)
		}
	}
	metrics.ArmedTimers.Set(float64(len(s.timers)))
}

func (s *SchedulerService) hasDaily(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey{id: id, slot: slotDaily}]
	return ok
}

// expire runs on the clock's goroutine.
func (s *SchedulerService) expire(key timerKey, gen uint64) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		s.fire(context.Background(), key, gen)
		return
	}
	cmd := notification.FireCommand{ID: key.id, Snooze: key.slot == slotSnooze, Generation: gen}
	if err := sink.Submit(context.Background(), cmd); err != nil {
		s.logger.WithError(err).WithField("notification_id", key.id).Warn("Failed to submit timer fire")
	}
}

func (s *SchedulerService) fire(ctx context.Context, key timerKey, gen uint64) {
	s.mu.Lock()
	t, ok := s.timers[key]
	if !ok || t.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	epoch := s.epochs[key.id]
	metrics.ArmedTimers.Set(float64(len(s.timers)))
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"notification_id": key.id,
		"slot":            key.slot.String(),
		"due":             t.due,
	})

	def, err := s.get(ctx, key.id)
	switch {
	case errors.Is(err, notification.ErrDefinitionNotFound):
		return
	case err != nil:
		logger.WithError(err).Warn("Store unavailable on fire, using armed snapshot")
		def = t.snapshot
	}
	if !def.Enabled {
		return
	}

	s.deliver(ctx, def, t.due, key.slot == slotDaily)
	s.rearm(ctx, key.id, t.snapshot, epoch)
}

// rearm re-reads the definition and arms the next occurrence. A clear since
// epoch was taken means a cancel or disable won the race, and nothing is armed.
func (s *SchedulerService) rearm(ctx context.Context, id string, snapshot *notification.Definition, epoch uint64) {
	def, err := s.get(ctx, id)
	switch {
	case errors.Is(err, notification.ErrDefinitionNotFound):
		return
	case err != nil:
		s.logger.WithError(err).WithField("notification_id", id).Warn("Store unavailable on re-arm, using armed snapshot")
		def = snapshot
	}
	if !def.Enabled {
		return
	}
	tod, err := notification.ParseTimeOfDay(def.Time)
	if err != nil {
		s.logger.WithError(err).WithField("notification_id", id).Error("Cannot re-arm notification")
		return
	}
	next := notification.NextFireTime(tod, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epochs[id] != epoch {
		s.logger.WithField("notification_id", id).Debug("Timers cleared during delivery, not re-arming")
		return
	}
	key := timerKey{id: id, slot: slotDaily}
	if _, armed := s.timers[key]; armed {
		return
	}
	s.installLocked(key, next, next, def)
}

// deliver presents def and logs the delivery. Failures are logged, never returned.
func (s *SchedulerService) deliver(ctx context.Context, def *notification.Definition, due time.Time, dedupe bool) {
	logger := s.logger.WithFields(logrus.Fields{
		"notification_id": def.ID,
		"type":            def.Type,
		"due":             due,
	})
	if dedupe {
		if !s.claim(def.ID) {
			metrics.Deliveries.WithLabelValues(string(def.Type), "duplicate").Inc()
			logger.Debug("Occurrence is being delivered, skipping")
			return
		}
		defer s.release(def.ID)

		if s.alreadyDelivered(ctx, def.ID, due) {
			metrics.Deliveries.WithLabelValues(string(def.Type), "duplicate").Inc()
			logger.Debug("Occurrence already delivered, skipping")
			return
		}
	}

	now := s.clock.Now()
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	err := s.channel.Present(dctx, delivery.NewPresentation(def, s.cfg.Icon, s.cfg.Badge, now))
	cancel()
	if err != nil {
		if errors.Is(err, notification.ErrPermissionDenied) {
			metrics.Deliveries.WithLabelValues(string(def.Type), "permission_denied").Inc()
			logger.Warn("Notification permission not granted, delivery skipped")
			return
		}
		metrics.Deliveries.WithLabelValues(string(def.Type), "failed").Inc()
		logger.WithError(err).Error("Failed to present notification")
		return
	}
	metrics.Deliveries.WithLabelValues(string(def.Type), "delivered").Inc()

	entry := notification.NewLogEntry(s.cfg.UserID, def, now)
	if err := s.appendLog(ctx, entry); err != nil {
		logger.WithError(err).Warn("Failed to log delivery")
		return
	}
	logger.WithField("log_id", entry.ID).Info("Notification delivered")
}

// claim marks a regular delivery of id as in flight. It fails while another
// one is still between its log check and its log append.
func (s *SchedulerService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *SchedulerService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// alreadyDelivered reports whether a delivery was logged at or after the
// tolerance window opening before due. Store errors count as not delivered.
func (s *SchedulerService) alreadyDelivered(ctx context.Context, id string, due time.Time) bool {
	latest, err := s.latestLog(ctx, id)
	if err != nil {
		return false
	}
	return !latest.TriggeredAt.Before(due.Add(-s.cfg.CatchUpTolerance))
}

// --- store access ---

func (s *SchedulerService) storeErr(op string, err error) error {
	if errors.Is(err, notification.ErrDefinitionNotFound) || errors.Is(err, notification.ErrLogNotFound) {
		return err
	}
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%w: %s: %w", notification.ErrStoreUnavailable, op, err)
}

func (s *SchedulerService) get(ctx context.Context, id string) (*notification.Definition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeErr("get", err)
	}
	return def, nil
}

func (s *SchedulerService) getAll(ctx context.Context) ([]*notification.Definition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	defs, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, s.storeErr("get_all", err)
	}
	return defs, nil
}

func (s *SchedulerService) put(ctx context.Context, def *notification.Definition) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.Put(ctx, def); err != nil {
		return s.storeErr("put", err)
	}
	return nil
}

func (s *SchedulerService) appendLog(ctx context.Context, e *notification.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.AppendLog(ctx, e); err != nil {
		return s.storeErr("append_log", err)
	}
	return nil
}

func (s *SchedulerService) latestLog(ctx context.Context, id string) (*notification.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	e, err := s.repo.LatestLogForDefinition(ctx, id)
	if err != nil {
		return nil, s.storeErr("latest_log", err)
	}
	return e, nil
}
