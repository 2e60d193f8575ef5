// internal/infra/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// WakeScheduler periodically wakes the worker so deliveries missed while
// timers were not running get caught up.
type WakeScheduler struct {
	cronEngine *cron.Cron
	sink       delivery.CommandSink
	logger     *logrus.Entry
	spec       string
	timeout    time.Duration
	now        func() time.Time
}

func NewWakeScheduler(
	sink delivery.CommandSink,
	logger *logrus.Entry,
	spec string, // e.g. "* * * * *" (every minute)
	timeout time.Duration,
) *WakeScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WakeScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // notification times are local wall clock
		sink:       sink,
		logger:     logger,
		spec:       spec,
		timeout:    timeout,
		now:        time.Now,
	}
}

func (s *WakeScheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting wake scheduler...")

	if _, err := s.cronEngine.AddFunc(s.spec, s.wake); err != nil {
		return fmt.Errorf("could not add wake cron job %q: %w", s.spec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Wake scheduler started")
	return nil
}

// wake submits a WAKE command stamped with the current time.
func (s *WakeScheduler) wake() {
	at := s.now()
	logger := s.logger.WithField("at", at)
	logger.Debug("Wake cron job triggered")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sink.Submit(ctx, notification.WakeCommand{At: at}); err != nil {
		logger.WithError(err).Error("Error during wake catch-up")
	}
}

func (s *WakeScheduler) Stop() {
	s.logger.Info("Stopping wake scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Wake scheduler gracefully stopped")
}
