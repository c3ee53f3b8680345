package cycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func TestRecorder_EventSequence(t *testing.T) {
	rec := NewRecorder("run-1", "acct-1", "autonomous", []string{"NVDA", "TSLA"})

	rec.Event("market_data", "NVDA", "tool_call", map[string]any{"price": 130.0}, 20*time.Millisecond)
	rec.Event("analysis", "NVDA", "stage_result", nil, 0)
	rec.Event("decision", "NVDA", "decision", nil, 0)

	trace := rec.Snapshot()
	assert.Equal(t, "run-1", trace.RunID)
	assert.Equal(t, domain.CycleStatusRunning, trace.Status)
	require.Len(t, trace.Events, 3)
	for i, ev := range trace.Events {
		assert.Equal(t, i+1, ev.Seq)
	}
	assert.Equal(t, int64(20), trace.Events[0].DurationMS)
}

func TestRecorder_ConcurrentEventsKeepUniqueSeq(t *testing.T) {
	rec := NewRecorder("run-1", "acct-1", "autonomous", nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Event("analysis", "NVDA", "stage_result", nil, 0)
		}()
	}
	wg.Wait()

	trace := rec.Snapshot()
	require.Len(t, trace.Events, n)
	seen := make(map[int]bool, n)
	for _, ev := range trace.Events {
		assert.False(t, seen[ev.Seq], "duplicate seq %d", ev.Seq)
		seen[ev.Seq] = true
	}
}

func TestRecorder_CountsAndErrors(t *testing.T) {
	rec := NewRecorder("run-1", "acct-1", "autonomous", nil)

	rec.Count("filled")
	rec.Count("filled")
	rec.Count("rejected")
	rec.Count("held")
	rec.SymbolError("TSLA", errors.New("feed down"))

	trace := rec.Snapshot()
	assert.Equal(t, 2, trace.Result.Filled)
	assert.Equal(t, 1, trace.Result.Rejected)
	assert.Equal(t, 1, trace.Result.Held)
	assert.Equal(t, 1, trace.Result.Failed)
	require.Len(t, trace.Result.Errors, 1)
	assert.Equal(t, "TSLA", trace.Result.Errors[0].Symbol)
}

func TestRecorder_Finish(t *testing.T) {
	rec := NewRecorder("run-1", "acct-1", "manual", nil)
	refl := &domain.Reflection{TradesExecuted: 1}

	trace := rec.Finish(domain.CycleStatusComplete, refl, nil)
	assert.Equal(t, domain.CycleStatusComplete, trace.Status)
	assert.Equal(t, refl, trace.Reflection)
	assert.False(t, trace.EndedAt.IsZero())
	assert.GreaterOrEqual(t, trace.DurationMS, int64(0))
	assert.Empty(t, trace.Error)

	failed := NewRecorder("run-2", "acct-1", "manual", nil).
		Finish(domain.CycleStatusError, nil, errors.New("boom"))
	assert.Equal(t, "boom", failed.Error)
}
