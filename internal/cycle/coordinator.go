package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/executor"
	"github.com/alanyoungcy/papertrader/internal/pipeline"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
)

// Notifier is the subset of the notification dispatcher the coordinator
// uses. Delivery failures never fail a cycle.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Params are the per-cycle policy knobs.
type Params struct {
	Watchlist   []string
	Concurrency int
	Mode        string // autonomous / manual
	LockTTL     time.Duration
	Risk        pipeline.RiskParams
	Decision    pipeline.DecisionParams
}

// Coordinator runs decision cycles. At most one cycle per account runs at a
// time, enforced by the lock manager; a second caller gets
// domain.ErrCycleInProgress and no partial work happens.
type Coordinator struct {
	log          *slog.Logger
	params       Params
	locks        domain.LockManager
	observations domain.ObservationSource
	manager      *portfolio.Manager
	exec         *executor.Executor
	traces       domain.TraceStore
	reasoner     domain.ReasoningWriter
	notifier     Notifier
}

func NewCoordinator(
	log *slog.Logger,
	params Params,
	locks domain.LockManager,
	observations domain.ObservationSource,
	manager *portfolio.Manager,
	exec *executor.Executor,
	traces domain.TraceStore,
	reasoner domain.ReasoningWriter,
	notifier Notifier,
) *Coordinator {
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	return &Coordinator{
		log:          log.With("component", "cycle"),
		params:       params,
		locks:        locks,
		observations: observations,
		manager:      manager,
		exec:         exec,
		traces:       traces,
		reasoner:     reasoner,
		notifier:     notifier,
	}
}

// RunCycle executes one full cycle for the account and returns the persisted
// trace. The trace write is part of the cycle: if it fails, the cycle is
// reported as failed even though fills may have been applied.
func (c *Coordinator) RunCycle(ctx context.Context, accountID string) (domain.CycleTrace, error) {
	unlock, err := c.locks.Acquire(ctx, "cycle:"+accountID, c.params.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.CycleTrace{}, fmt.Errorf("cycle: account %s: %w", accountID, domain.ErrCycleInProgress)
		}
		return domain.CycleTrace{}, fmt.Errorf("cycle: acquire lock: %w", err)
	}
	defer unlock()

	runID := uuid.NewString()
	rec := NewRecorder(runID, accountID, c.params.Mode, c.params.Watchlist)
	log := c.log.With("run_id", runID, "account_id", accountID)
	log.Info("cycle started", "watchlist", c.params.Watchlist)

	trace, err := c.run(ctx, accountID, rec, log)
	if perr := c.traces.Put(context.WithoutCancel(ctx), trace); perr != nil {
		log.Error("trace persist failed", "error", perr)
		if err == nil {
			err = &domain.PersistenceError{Op: "persist trace", Err: perr}
		}
	}

	c.announce(ctx, trace)
	log.Info("cycle finished",
		"status", trace.Status,
		"filled", trace.Result.Filled,
		"rejected", trace.Result.Rejected,
		"held", trace.Result.Held,
		"failed", trace.Result.Failed,
		"duration_ms", trace.DurationMS,
	)
	return trace, err
}

func (c *Coordinator) run(ctx context.Context, accountID string, rec *Recorder, log *slog.Logger) (domain.CycleTrace, error) {
	startState, err := c.manager.LoadState(ctx, accountID)
	if err != nil {
		return rec.Finish(domain.CycleStatusError, nil, err), err
	}

	contexts := c.analyzeWatchlist(ctx, rec, startState)

	var fills []domain.Fill
	cancelled := false
	for i := range contexts {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		fill, filled := c.decideAndExecute(ctx, &contexts[i], startState, rec, log)
		if filled {
			fills = append(fills, fill)
		}
	}

	c.markPrices(ctx, accountID, contexts, log)

	// Reflection and snapshot run even on cancellation so the equity series
	// stays consistent with whatever fills landed.
	finishCtx := context.WithoutCancel(ctx)
	endState, err := c.manager.LoadState(finishCtx, accountID)
	if err != nil {
		return rec.Finish(domain.CycleStatusError, nil, err), err
	}
	refl := buildReflection(startState, endState, fills)
	rec.Event("reflection", "", "stage_result", map[string]any{
		"equity_change_pct": refl.ChangePct,
		"trades":            refl.TradesExecuted,
		"notes":             refl.Notes,
	}, 0)
	if _, err := c.manager.Snapshot(finishCtx, endState); err != nil {
		log.Warn("equity snapshot failed", "error", err)
	}

	if cancelled {
		cerr := ctx.Err()
		return rec.Finish(domain.CycleStatusCancelled, refl, cerr), cerr
	}
	return rec.Finish(domain.CycleStatusComplete, refl, nil), nil
}

// analyzeWatchlist runs observation, analysis, and risk for each symbol in
// parallel. Failures are captured per symbol; the cycle continues with the
// rest of the watchlist.
func (c *Coordinator) analyzeWatchlist(ctx context.Context, rec *Recorder, state domain.PortfolioState) []domain.SymbolContext {
	contexts := make([]domain.SymbolContext, len(c.params.Watchlist))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.params.Concurrency)

	for i, symbol := range c.params.Watchlist {
		contexts[i] = domain.SymbolContext{Symbol: symbol}
		g.Go(func() error {
			contexts[i] = c.analyzeSymbol(gctx, rec, state, symbol)
			return nil
		})
	}
	_ = g.Wait()
	return contexts
}

func (c *Coordinator) analyzeSymbol(ctx context.Context, rec *Recorder, state domain.PortfolioState, symbol string) domain.SymbolContext {
	sctx := domain.SymbolContext{Symbol: symbol}

	start := time.Now()
	obs, err := c.observations.Get(ctx, symbol)
	if err != nil {
		rec.Event("market_data", symbol, "error", map[string]any{"error": err.Error()}, time.Since(start))
		rec.SymbolError(symbol, err)
		return sctx.WithError(err)
	}
	sctx = sctx.WithObservation(obs)
	rec.Event("market_data", symbol, "tool_call", map[string]any{
		"price":   obs.Quote.Price(),
		"candles": len(obs.History),
	}, time.Since(start))

	start = time.Now()
	report := pipeline.Analyze(obs)
	sctx = sctx.WithAnalysis(report)
	rec.Event("analysis", symbol, "stage_result", map[string]any{
		"action":     string(report.Action),
		"confidence": report.Confidence,
		"signals":    report.Signals,
		"summary":    report.Summary,
	}, time.Since(start))

	start = time.Now()
	risk := pipeline.EvaluateRisk(report, state, c.params.Risk)
	sctx = sctx.WithRisk(risk)
	rec.Event("risk", symbol, "stage_result", map[string]any{
		"approved":    risk.Approved,
		"quantity":    risk.Quantity,
		"reward_risk": risk.RewardRisk,
		"reasoning":   risk.Reasoning,
	}, time.Since(start))

	return sctx
}

// decideAndExecute runs the decision stage for one symbol and, for trade
// decisions, drives the order to a terminal state. Returns the fill when one
// was applied.
func (c *Coordinator) decideAndExecute(ctx context.Context, sctx *domain.SymbolContext, state domain.PortfolioState, rec *Recorder, log *slog.Logger) (domain.Fill, bool) {
	start := time.Now()
	decision := pipeline.Decide(*sctx, state, c.params.Decision)
	*sctx = sctx.WithDecision(decision)
	decision.Reasoning = c.writeReasoning(ctx, *sctx, state, rec)

	rec.Event("decision", sctx.Symbol, "decision", map[string]any{
		"action":     string(decision.Action),
		"quantity":   decision.Quantity,
		"confidence": decision.Confidence,
		"violations": decision.Violations,
		"reasoning":  decision.Reasoning,
	}, time.Since(start))

	if decision.Action == domain.ActionHold {
		rec.Decision(decision)
		rec.Count("held")
		return domain.Fill{}, false
	}

	order, err := c.exec.Propose(ctx, decision, state.AccountID, rec.RunID())
	if err != nil {
		log.Error("order proposal failed", "symbol", sctx.Symbol, "error", err)
		rec.Decision(decision)
		rec.SymbolError(sctx.Symbol, err)
		return domain.Fill{}, false
	}
	decision.OrderID = order.ID
	rec.Decision(decision)

	start = time.Now()
	fill, err := c.exec.Execute(ctx, &order)
	detail := map[string]any{"order_id": order.ID, "status": string(order.Status)}
	switch {
	case err == nil:
		detail["fill_price"] = domain.TicksToDollars(fill.FillPriceTicks)
		rec.Event("execution", sctx.Symbol, "order_result", detail, time.Since(start))
		rec.Count("filled")
		return fill, true
	case errors.Is(err, executor.ErrAwaitingReview):
		rec.Event("execution", sctx.Symbol, "order_result", detail, time.Since(start))
		rec.Count("held")
	default:
		detail["error"] = err.Error()
		rec.Event("execution", sctx.Symbol, "order_result", detail, time.Since(start))
		if _, ok := domain.AsConstraintError(err); ok {
			rec.Count("rejected")
		} else {
			rec.SymbolError(sctx.Symbol, err)
		}
	}
	return domain.Fill{}, false
}

// writeReasoning swaps in generated narrative when a writer is configured,
// keeping the deterministic reasoning on any failure.
func (c *Coordinator) writeReasoning(ctx context.Context, sctx domain.SymbolContext, state domain.PortfolioState, rec *Recorder) string {
	if c.reasoner == nil {
		return sctx.Decision.Reasoning
	}
	start := time.Now()
	text, err := c.reasoner.WriteReasoning(ctx, sctx, state)
	if err != nil {
		c.log.Warn("reasoning writer failed", "symbol", sctx.Symbol, "error", err)
		rec.Event("textgen", sctx.Symbol, "error", map[string]any{"error": err.Error()}, time.Since(start))
		return sctx.Decision.Reasoning
	}
	rec.Event("textgen", sctx.Symbol, "tool_call", map[string]any{"chars": len(text)}, time.Since(start))
	return text
}

func (c *Coordinator) markPrices(ctx context.Context, accountID string, contexts []domain.SymbolContext, log *slog.Logger) {
	prices := make(map[string]int64)
	for _, sctx := range contexts {
		if sctx.Err == nil && sctx.Observation.Quote.PriceTicks > 0 {
			prices[sctx.Symbol] = sctx.Observation.Quote.PriceTicks
		}
	}
	if err := c.manager.MarkPrices(context.WithoutCancel(ctx), accountID, prices); err != nil {
		log.Warn("mark prices failed", "error", err)
	}
}

func (c *Coordinator) announce(ctx context.Context, trace domain.CycleTrace) {
	if c.notifier == nil {
		return
	}
	title := fmt.Sprintf("Cycle %s: %s", trace.RunID[:8], trace.Status)
	body := fmt.Sprintf("filled %d, rejected %d, held %d, failed %d",
		trace.Result.Filled, trace.Result.Rejected, trace.Result.Held, trace.Result.Failed)
	if trace.Reflection != nil {
		body += "\n" + trace.Reflection.Notes
	}
	if err := c.notifier.Notify(context.WithoutCancel(ctx), "cycle_summary", title, body); err != nil {
		c.log.Warn("cycle notification failed", "error", err)
	}
}
