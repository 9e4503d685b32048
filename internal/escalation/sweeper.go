// Package escalation runs a periodic sweep that escalates overdue stages the
// timer workflows may have missed.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "*/5 * * * *"

type Escalator interface {
	EscalateOverdue(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	escalator Escalator
	schedule  string
	timeout   time.Duration
	now       func() time.Time
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewSweeper(e Escalator, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if e == nil {
		return nil, errors.New("escalation sweeper requires an escalator")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		escalator: e,
		schedule:  schedule,
		timeout:   time.Minute,
		now:       time.Now,
		logger:    logger.With("module", "escalation_sweeper", "schedule", schedule),
	}, nil
}

func (s *Sweeper) Start() error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("escalation sweeper started")
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("escalation sweeper stopped")
}

// Sweep escalates every overdue stage once and returns how many it handled.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.escalator.EscalateOverdue(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("escalation sweep failed", "escalated", n, "error", err)
		return n
	}
	if n > 0 {
		s.logger.Info("overdue stages escalated", "escalated", n)
	}
	return n
}
