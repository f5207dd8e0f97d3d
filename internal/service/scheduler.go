package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs a named job on a fixed interval until stopped. Jobs are
// fire-and-forget units of work; a failing run is logged and the next
// tick proceeds.
type Scheduler struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *logrus.Logger
	stopCh   chan struct{}
}

func NewScheduler(name string, interval time.Duration, run func(ctx context.Context) error, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"job":      s.name,
		"interval": s.interval,
	}).Info("Starting scheduler")

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("job", s.name).Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.WithField("job", s.name).Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.run(ctx); err != nil {
		s.logger.WithError(err).WithField("job", s.name).Error("Scheduled job failed")
	}
}
