package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// TraceHandler serves cycle audit traces.
type TraceHandler struct {
	logger    *slog.Logger
	traces    domain.TraceStore
	accountID string
}

func NewTraceHandler(logger *slog.Logger, traces domain.TraceStore, accountID string) *TraceHandler {
	return &TraceHandler{
		logger:    logger,
		traces:    traces,
		accountID: accountID,
	}
}

// ListTraces returns run summaries newest first. Full event logs are large;
// the list view carries only headline fields.
// GET /api/traces
func (h *TraceHandler) ListTraces(w http.ResponseWriter, r *http.Request) {
	traces, err := h.traces.List(r.Context(), h.accountID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list traces failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}

	type summary struct {
		RunID      string             `json:"run_id"`
		Status     domain.CycleStatus `json:"status"`
		StartedAt  string             `json:"started_at"`
		DurationMS int64              `json:"duration_ms"`
		Result     domain.CycleResult `json:"result"`
	}
	summaries := make([]summary, 0, len(traces))
	for _, t := range traces {
		summaries = append(summaries, summary{
			RunID:      t.RunID,
			Status:     t.Status,
			StartedAt:  t.StartedAt.UTC().Format(time.RFC3339),
			DurationMS: t.DurationMS,
			Result:     t.Result,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": summaries})
}

// GetTrace returns one full trace document.
// GET /api/traces/{run_id}
func (h *TraceHandler) GetTrace(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	trace, err := h.traces.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trace not found")
			return
		}
		h.logger.Error("get trace failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load trace")
		return
	}
	writeJSON(w, http.StatusOK, trace)
}
