package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Refresher refreshes every configured location.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler periodically refreshes the snapshot cache so that requests hit warm entries.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	log       logrus.FieldLogger
}

// New creates a new Scheduler. timeout bounds one refresh run.
func New(refresher Refresher, interval, timeout time.Duration, log logrus.FieldLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// A non-positive interval disables the scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("scheduler: refresh interval not set; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.WithField("interval", s.interval).Info("scheduler: started")
	return nil
}

func (s *Scheduler) run() {
	s.log.Debug("scheduler: running refresh job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refresher.RefreshAll(ctx); err != nil {
		s.log.WithError(err).Warn("scheduler: refresh completed with failures")
		return
	}
	s.log.Debug("scheduler: refresh completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
