package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"propel/internal/core"
	"propel/internal/log"
)

// RunFunc runs one billing cycle for period.
type RunFunc func(ctx context.Context, period core.Period) error

// Scheduler triggers the billing cycle on a cron schedule, running only on
// days that close a biweek counted from the anchor.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	anchor core.Date
	run    RunFunc
	now    func() time.Time
	logger *log.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(spec string, anchor core.Date, run RunFunc, logger *log.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		anchor: anchor,
		run:    run,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentScheduler),
	}, nil
}

// Start registers the job and starts the cron loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule billing cycle: %w", err)
	}
	s.cron.Start()
	s.running = true

	s.logger.InfoContext(ctx, "Scheduler started",
		"schedule", s.spec,
		"anchor", s.anchor.String())
	return nil
}

// Stop stops the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tick runs the cycle for the biweek ending today, if today closes one.
func (s *Scheduler) tick(ctx context.Context) {
	today := core.DateOf(s.now())
	if !BiweeklyPeriodDue(s.anchor, today) {
		s.logger.DebugContext(ctx, "Not a billing day, skipping", "today", today.String())
		return
	}

	period := PeriodEndingOn(today)
	if err := s.run(ctx, period); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled billing cycle failed",
			log.FieldPeriodStart, period.Start.String(),
			log.FieldError, err)
	}
}
