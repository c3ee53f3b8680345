package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/executor"
)

// OrderHandler serves order listing and the human-review actions.
type OrderHandler struct {
	logger    *slog.Logger
	orders    domain.OrderStore
	exec      *executor.Executor
	accountID string
}

func NewOrderHandler(logger *slog.Logger, orders domain.OrderStore, exec *executor.Executor, accountID string) *OrderHandler {
	return &OrderHandler{
		logger:    logger,
		orders:    orders,
		exec:      exec,
		accountID: accountID,
	}
}

type orderView struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Quantity     int64   `json:"quantity"`
	Price        float64 `json:"price"`
	FillPrice    float64 `json:"fill_price,omitempty"`
	Status       string  `json:"status"`
	RunID        string  `json:"run_id,omitempty"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning,omitempty"`
	RejectReason string  `json:"reject_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func toOrderView(o domain.Order) orderView {
	return orderView{
		ID:           o.ID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Quantity:     o.Quantity,
		Price:        o.Price(),
		FillPrice:    domain.TicksToDollars(o.FillPriceTicks),
		Status:       string(o.Status),
		RunID:        o.RunID,
		Confidence:   o.Confidence,
		Reasoning:    o.Reasoning,
		RejectReason: o.RejectReason,
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListOrders returns the account's orders newest first.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByAccount(r.Context(), h.accountID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list orders failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

// ApproveOrder approves a proposed order and executes it immediately.
// POST /api/orders/{id}/approve
func (h *OrderHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.exec.Approve(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, id, err)
		return
	}

	if _, err := h.exec.Execute(r.Context(), &order); err != nil {
		if cerr, ok := domain.AsConstraintError(err); ok {
			writeJSON(w, http.StatusConflict, map[string]any{
				"order":      toOrderView(order),
				"violations": cerr.Violations,
			})
			return
		}
		h.writeOrderError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": toOrderView(order)})
}

// CancelOrder cancels a non-terminal order.
// POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.exec.Cancel(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": toOrderView(order)})
}

func (h *OrderHandler) writeOrderError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("order action failed", slog.String("order_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "order action failed")
	}
}
