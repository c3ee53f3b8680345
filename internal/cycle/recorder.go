// Package cycle coordinates one full decision cycle per account: observe,
// analyze, decide, execute, reflect, and persist the audit trace.
package cycle

import (
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// Recorder accumulates the append-only audit trace for one cycle run. Safe
// for concurrent use by the per-symbol stage goroutines.
type Recorder struct {
	mu    sync.Mutex
	trace domain.CycleTrace
	seq   int
	now   func() time.Time
}

func NewRecorder(runID, accountID, mode string, watchlist []string) *Recorder {
	r := &Recorder{now: time.Now}
	r.trace = domain.CycleTrace{
		RunID:     runID,
		AccountID: accountID,
		Mode:      mode,
		Watchlist: watchlist,
		StartedAt: r.now().UTC(),
		Status:    domain.CycleStatusRunning,
	}
	return r
}

// Event appends one trace event. Detail maps are stored as given; callers
// must not mutate them afterwards.
func (r *Recorder) Event(stage, symbol, kind string, detail map[string]any, dur time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.trace.Events = append(r.trace.Events, domain.TraceEvent{
		Seq:        r.seq,
		At:         r.now().UTC(),
		Stage:      stage,
		Symbol:     symbol,
		Kind:       kind,
		Detail:     detail,
		DurationMS: dur.Milliseconds(),
	})
}

// Decision records a final per-symbol decision.
func (r *Recorder) Decision(d domain.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Decisions = append(r.trace.Decisions, d)
}

// SymbolError records a per-symbol failure in the result summary.
func (r *Recorder) SymbolError(symbol string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Result.Failed++
	r.trace.Result.Errors = append(r.trace.Result.Errors, domain.SymbolError{
		Symbol: symbol,
		Error:  err.Error(),
	})
}

// Count bumps one of the outcome counters.
func (r *Recorder) Count(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case "filled":
		r.trace.Result.Filled++
	case "rejected":
		r.trace.Result.Rejected++
	case "held":
		r.trace.Result.Held++
	}
}

// Finish stamps the end time and final status and returns the completed
// trace. The recorder must not be used after Finish.
func (r *Recorder) Finish(status domain.CycleStatus, reflection *domain.Reflection, cycleErr error) domain.CycleTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := r.now().UTC()
	r.trace.EndedAt = end
	r.trace.DurationMS = end.Sub(r.trace.StartedAt).Milliseconds()
	r.trace.Status = status
	r.trace.Reflection = reflection
	if cycleErr != nil {
		r.trace.Error = cycleErr.Error()
	}
	return r.trace
}

// RunID returns the run this recorder belongs to.
func (r *Recorder) RunID() string {
	return r.trace.RunID
}

// Snapshot returns a copy of the trace as recorded so far.
func (r *Recorder) Snapshot() domain.CycleTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}
