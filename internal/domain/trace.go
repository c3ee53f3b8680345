package domain

import "time"

// CycleStatus tracks the state of one cycle run.
type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "RUNNING"
	CycleStatusComplete  CycleStatus = "COMPLETE"
	CycleStatusCancelled CycleStatus = "CANCELLED"
	CycleStatusError     CycleStatus = "ERROR"
)

// TraceEvent is one entry in the cycle's append-only audit log: a stage
// invocation, a tool call, a decision, or an order outcome.
type TraceEvent struct {
	Seq        int            `json:"seq"`
	At         time.Time      `json:"at"`
	Stage      string         `json:"stage"` // analysis / risk / decision / execution / reflection / market_data / textgen
	Symbol     string         `json:"symbol,omitempty"`
	Kind       string         `json:"kind"` // stage_result / tool_call / decision / order_result / error
	Detail     map[string]any `json:"detail,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

// SymbolError records a per-symbol failure that did not halt the cycle.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// CycleResult is the operator-visible outcome summary of a cycle.
type CycleResult struct {
	Filled   int           `json:"filled"`
	Rejected int           `json:"rejected"`
	Held     int           `json:"held"`
	Failed   int           `json:"failed"`
	Errors   []SymbolError `json:"errors,omitempty"`
}

// Reflection is the post-cycle portfolio diff.
type Reflection struct {
	OldEquityTicks int64    `json:"old_equity_ticks"`
	NewEquityTicks int64    `json:"new_equity_ticks"`
	ChangeTicks    int64    `json:"change_ticks"`
	ChangePct      float64  `json:"change_pct"`
	TradesExecuted int      `json:"trades_executed"`
	Entered        []string `json:"entered,omitempty"`
	Exited         []string `json:"exited,omitempty"`
	Lessons        []string `json:"lessons,omitempty"`
	Notes          string   `json:"notes"`
}

// CycleTrace is the complete causal record of one cycle run: every stage
// invocation, every decision, every order outcome. Append-only while the
// cycle runs; persisted as one document at completion, keyed by RunID.
type CycleTrace struct {
	RunID      string       `json:"run_id"`
	AccountID  string       `json:"account_id"`
	Mode       string       `json:"mode"` // autonomous / manual
	Watchlist  []string     `json:"watchlist"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at,omitempty"`
	DurationMS int64        `json:"duration_ms,omitempty"`
	Status     CycleStatus  `json:"status"`
	Events     []TraceEvent `json:"events"`
	Decisions  []Decision   `json:"decisions"`
	Result     CycleResult  `json:"result"`
	Reflection *Reflection  `json:"reflection,omitempty"`
	Error      string       `json:"error,omitempty"`
}
