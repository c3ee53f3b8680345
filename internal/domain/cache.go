package domain

import (
	"context"
	"time"
)

// ObservationSource yields the market observation for a symbol. Implemented
// by the TTL snapshot cache; failures surface as ErrDataUnavailable.
type ObservationSource interface {
	Get(ctx context.Context, symbol string) (MarketObservation, error)
}

// QuoteFetcher is the market-data collaborator boundary: one quote plus
// daily history per call.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, []Candle, error)
}

// LockManager provides the per-account cycle lock. Acquire returns
// ErrLockHeld when another holder has the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ReasoningWriter is the text-generation collaborator boundary. The returned
// text is used only for human-readable reasoning fields, never for numeric
// decisions.
type ReasoningWriter interface {
	WriteReasoning(ctx context.Context, sctx SymbolContext, state PortfolioState) (string, error)
}
