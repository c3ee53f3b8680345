package domain

// Action is the final verdict of the decision stage for one symbol.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side converts a trading action to an order side. Only valid for BUY/SELL.
func (a Action) Side() OrderSide {
	if a == ActionSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Signal tags emitted by the analysis stage. Discrete so the risk and
// decision stages (and tests) can match on them without string parsing.
const (
	SignalBullishMomentum  = "bullish-momentum"
	SignalBearishMomentum  = "bearish-momentum"
	SignalOverbought       = "overbought"
	SignalOversold         = "oversold"
	SignalMACDBullishCross = "macd-bullish-cross"
	SignalMACDBearishCross = "macd-bearish-cross"
	SignalAboveSMA20       = "above-sma20"
	SignalBelowSMA20       = "below-sma20"
)

// AnalysisReport is the output of the analysis stage: a pure function of the
// market observation. A degraded result (insufficient history) has
// Confidence 0 and no signals; it is not an error.
type AnalysisReport struct {
	Symbol     string
	PriceTicks int64
	Indicators Indicators
	Signals    []string
	Confidence float64 // in [0,1]
	Action     Action  // proposed direction, before risk and constraints
	Summary    string
}

// Degraded reports whether the analysis carries no usable signal.
func (r AnalysisReport) Degraded() bool {
	return r.Confidence == 0 && len(r.Signals) == 0
}

// RiskAssessment is the risk stage's recommendation. It never mutates
// portfolio state.
type RiskAssessment struct {
	Approved        bool
	Quantity        int64
	StopLossTicks   int64
	TakeProfitTicks int64
	RewardRisk      float64
	RiskLevel       string // LOW / MEDIUM / HIGH
	Reasoning       string
}

// Decision is the final synthesis for one symbol. Any stage disagreement
// forces HOLD; BUY/SELL decisions carry the order parameters.
type Decision struct {
	Symbol     string
	Action     Action
	Quantity   int64
	PriceTicks int64
	Confidence float64
	Reasoning  string

	// Violations lists the constraint pre-check failures that forced a
	// HOLD, if any.
	Violations []Violation

	// OrderID is set once the coordinator creates the proposed order.
	OrderID string
}

// SymbolContext accumulates the outputs of each pipeline stage for one
// symbol within one cycle. Stages never share mutable state; each one
// receives a value copy and returns an extended copy.
type SymbolContext struct {
	Symbol      string
	Observation *MarketObservation
	Analysis    *AnalysisReport
	Risk        *RiskAssessment
	Decision    *Decision
	Err         error // symbol-level failure (e.g. data unavailable)
}

// WithObservation returns a copy with the observation attached.
func (c SymbolContext) WithObservation(obs MarketObservation) SymbolContext {
	c.Observation = &obs
	return c
}

// WithAnalysis returns a copy with the analysis report attached.
func (c SymbolContext) WithAnalysis(r AnalysisReport) SymbolContext {
	c.Analysis = &r
	return c
}

// WithRisk returns a copy with the risk assessment attached.
func (c SymbolContext) WithRisk(r RiskAssessment) SymbolContext {
	c.Risk = &r
	return c
}

// WithDecision returns a copy with the final decision attached.
func (c SymbolContext) WithDecision(d Decision) SymbolContext {
	c.Decision = &d
	return c
}

// WithError returns a copy carrying a symbol-level error.
func (c SymbolContext) WithError(err error) SymbolContext {
	c.Err = err
	return c
}
