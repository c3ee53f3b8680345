// Package scheduler runs decision cycles on a fixed interval in daemon mode.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// CycleRunner is the coordinator surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context, accountID string) (domain.CycleTrace, error)
}

// Scheduler triggers one cycle immediately and then one per interval until
// the context ends. Each cycle gets its own timeout. A cycle still running
// when the next tick fires is skipped, not queued.
type Scheduler struct {
	log       *slog.Logger
	runner    CycleRunner
	accountID string
	interval  time.Duration
	timeout   time.Duration
}

func New(log *slog.Logger, runner CycleRunner, accountID string, interval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		log:       log.With("component", "scheduler"),
		runner:    runner,
		accountID: accountID,
		interval:  interval,
		timeout:   timeout,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.interval, "timeout", s.timeout)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	_, err := s.runner.RunCycle(runCtx, s.accountID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCycleInProgress):
		s.log.Warn("cycle still running, skipping tick")
	case errors.Is(err, context.Canceled):
	default:
		s.log.Error("cycle failed", "error", err)
	}
}
