// Package pipeline implements the per-symbol decision pipeline as pure stage
// functions: Analyze → EvaluateRisk → Decide. Stages communicate only
// through the SymbolContext; none of them reads or writes external state, so
// every decision is reproducible from its recorded inputs.
package pipeline

import (
	"fmt"
	"math"
	"strings"

	talib "github.com/markcheno/go-talib"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

const (
	// minHistory is the number of daily candles required for a usable
	// indicator set (SMA50 plus warm-up).
	minHistory = 30

	rsiPeriod  = 14
	atrPeriod  = 14
	smaFast    = 20
	smaSlow    = 50
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Analyze computes the deterministic technical summary for one observation.
// It is a pure function of the observation. Insufficient history yields a
// degraded report (confidence 0, no signals, HOLD) rather than an error.
func Analyze(obs domain.MarketObservation) domain.AnalysisReport {
	report := domain.AnalysisReport{
		Symbol:     obs.Symbol,
		PriceTicks: obs.Quote.PriceTicks,
		Action:     domain.ActionHold,
	}

	if len(obs.History) < minHistory {
		report.Summary = fmt.Sprintf("%s: insufficient history (%d candles)", obs.Symbol, len(obs.History))
		return report
	}

	closes := obs.Closes()
	highs := make([]float64, len(obs.History))
	lows := make([]float64, len(obs.History))
	for i, c := range obs.History {
		highs[i] = c.High
		lows[i] = c.Low
	}
	price := obs.Quote.Price()

	ind := domain.Indicators{
		RSI:   last(talib.Rsi(closes, rsiPeriod)),
		SMA20: last(talib.Sma(closes, smaFast)),
		ATR:   last(talib.Atr(highs, lows, closes, atrPeriod)),
		Trend: domain.TrendNeutral,
	}
	if len(closes) >= smaSlow {
		ind.SMA50 = last(talib.Sma(closes, smaSlow))
	}
	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	ind.MACD = last(macd)
	ind.MACDSignal = last(signal)
	ind.MACDHist = last(hist)

	if ind.SMA20 > 0 && ind.SMA50 > 0 {
		switch {
		case ind.SMA20 > ind.SMA50 && price > ind.SMA20:
			ind.Trend = domain.TrendBullish
		case ind.SMA20 < ind.SMA50 && price < ind.SMA20:
			ind.Trend = domain.TrendBearish
		}
	}
	report.Indicators = ind

	// Score the signal set. Trend carries double weight; the rest are
	// single votes. The net score drives both the proposed direction and
	// the confidence bound.
	var bull, bear int
	var signals []string

	switch ind.Trend {
	case domain.TrendBullish:
		bull += 2
	case domain.TrendBearish:
		bear += 2
	}

	if ind.MACD > ind.MACDSignal {
		signals = append(signals, domain.SignalMACDBullishCross)
		bull++
	} else {
		signals = append(signals, domain.SignalMACDBearishCross)
		bear++
	}

	if price > ind.SMA20 {
		signals = append(signals, domain.SignalAboveSMA20)
		bull++
	} else {
		signals = append(signals, domain.SignalBelowSMA20)
		bear++
	}

	switch {
	case ind.RSI > 70:
		signals = append(signals, domain.SignalOverbought)
		bear++
	case ind.RSI < 30:
		signals = append(signals, domain.SignalOversold)
		bull++
	}

	net := bull - bear
	switch {
	case net >= 2 && ind.Trend == domain.TrendBullish:
		report.Action = domain.ActionBuy
		signals = append(signals, domain.SignalBullishMomentum)
	case net <= -2 && ind.Trend == domain.TrendBearish:
		report.Action = domain.ActionSell
		signals = append(signals, domain.SignalBearishMomentum)
	}

	report.Signals = signals
	report.Confidence = confidenceFromScore(net)
	report.Summary = fmt.Sprintf(
		"%s @ %.2f: trend %s, RSI %.1f, MACD %+.3f/%+.3f, SMA20 %.2f, SMA50 %.2f; signals: %s",
		obs.Symbol, price, ind.Trend, ind.RSI, ind.MACD, ind.MACDSignal,
		ind.SMA20, ind.SMA50, strings.Join(signals, ", "),
	)
	return report
}

// confidenceFromScore maps the net signal score to [0.5, 0.9]. A flat score
// means no conviction either way.
func confidenceFromScore(net int) float64 {
	n := math.Abs(float64(net))
	if n > 4 {
		n = 4
	}
	return 0.5 + 0.1*n
}

// last returns the final element of a talib output series, skipping the
// leading zero warm-up convention.
func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
