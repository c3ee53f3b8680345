package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
)

// PortfolioHandler serves account state and the equity series.
type PortfolioHandler struct {
	logger    *slog.Logger
	manager   *portfolio.Manager
	snapshots domain.SnapshotStore
	accountID string
}

func NewPortfolioHandler(logger *slog.Logger, manager *portfolio.Manager, snapshots domain.SnapshotStore, accountID string) *PortfolioHandler {
	return &PortfolioHandler{
		logger:    logger,
		manager:   manager,
		snapshots: snapshots,
		accountID: accountID,
	}
}

type positionView struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AvgEntry      float64 `json:"avg_entry"`
	MarkPrice     float64 `json:"mark_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPct        float64 `json:"pnl_pct"`
}

type portfolioView struct {
	AccountID      string         `json:"account_id"`
	Cash           float64        `json:"cash"`
	PositionsValue float64        `json:"positions_value"`
	Equity         float64        `json:"equity"`
	ReturnPct      float64        `json:"return_pct"`
	Positions      []positionView `json:"positions"`
}

// GetPortfolio returns current cash, equity, and open positions.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.LoadState(r.Context(), h.accountID)
	if err != nil {
		h.logger.Error("load portfolio failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	view := portfolioView{
		AccountID:      state.AccountID,
		Cash:           domain.TicksToDollars(state.CashTicks),
		PositionsValue: domain.TicksToDollars(state.PositionsValueTicks),
		Equity:         domain.TicksToDollars(state.EquityTicks),
		ReturnPct:      state.ReturnPct(),
		Positions:      make([]positionView, 0, len(state.Positions)),
	}
	for _, p := range state.Positions {
		view.Positions = append(view.Positions, positionView{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			AvgEntry:      domain.TicksToDollars(p.AvgEntryTicks),
			MarkPrice:     domain.TicksToDollars(p.MarkPriceTicks),
			MarketValue:   domain.TicksToDollars(p.MarketValueTicks()),
			UnrealizedPnL: domain.TicksToDollars(p.UnrealizedPnLTicks()),
			PnLPct:        p.UnrealizedPnLPct(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

type snapshotView struct {
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	PositionsValue float64 `json:"positions_value"`
	Timestamp      string  `json:"timestamp"`
}

// ListSnapshots returns the equity time series oldest first.
// GET /api/portfolio/snapshots
func (h *PortfolioHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.snapshots.ListByAccount(r.Context(), h.accountID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list snapshots failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	views := make([]snapshotView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, snapshotView{
			Equity:         domain.TicksToDollars(s.EquityTicks),
			Cash:           domain.TicksToDollars(s.CashTicks),
			PositionsValue: domain.TicksToDollars(s.PositionsValueTicks),
			Timestamp:      s.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": views})
}
