package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/papertrader/internal/scheduler"
	"github.com/alanyoungcy/papertrader/internal/server"
	"github.com/alanyoungcy/papertrader/internal/server/handler"
)

// RunMode executes a single decision cycle and exits. Intended for cron-style
// operation and for inspecting behavior from the command line.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	runCtx := ctx
	if timeout := a.cfg.Pilot.CycleTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	trace, err := deps.Coordinator.RunCycle(runCtx, deps.AccountID)
	if err != nil {
		return fmt.Errorf("app: run cycle: %w", err)
	}
	a.logger.Info("cycle complete",
		slog.String("run_id", trace.RunID),
		slog.String("status", string(trace.Status)),
		slog.Int("filled", trace.Result.Filled),
		slog.Int("rejected", trace.Result.Rejected),
		slog.Int("held", trace.Result.Held),
	)
	return nil
}

// DaemonMode runs the cycle scheduler, the operator HTTP API, and the
// optional tick stream until the context is cancelled.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	sched := scheduler.New(
		a.logger,
		deps.Coordinator,
		deps.AccountID,
		a.cfg.Pilot.CycleInterval.Duration,
		a.cfg.Pilot.CycleTimeout.Duration,
	)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		srv := a.buildServer(deps)
		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if deps.Stream != nil {
		g.Go(func() error {
			defer deps.Stream.Close()
			return deps.Stream.Run(ctx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchival(ctx, deps)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// traceRetention is how long per-run trace documents stay unarchived.
const traceRetention = 30 * 24 * time.Hour

// runArchival bundles old cycle traces into daily archive objects so bucket
// lifecycle rules can expire the per-run documents.
func (a *App) runArchival(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-traceRetention)
			n, err := deps.Archiver.Archive(ctx, deps.AccountID, cutoff)
			if err != nil {
				a.logger.Error("trace archival failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("trace archival complete", slog.Int("archived", n))
			}
		}
	}
}

func (a *App) buildServer(deps *Dependencies) *server.Server {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Portfolio: handler.NewPortfolioHandler(a.logger, deps.Manager, deps.SnapshotStore, deps.AccountID),
		Orders:    handler.NewOrderHandler(a.logger, deps.OrderStore, deps.Executor, deps.AccountID),
		Traces:    handler.NewTraceHandler(a.logger, deps.TraceStore, deps.AccountID),
		Cycle:     handler.NewCycleHandler(a.logger, deps.Coordinator, deps.AccountID),
	}
	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, a.logger)
}
