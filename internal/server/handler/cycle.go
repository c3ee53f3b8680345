package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/scheduler"
)

// CycleHandler triggers decision cycles on demand.
type CycleHandler struct {
	logger    *slog.Logger
	runner    scheduler.CycleRunner
	accountID string
}

func NewCycleHandler(logger *slog.Logger, runner scheduler.CycleRunner, accountID string) *CycleHandler {
	return &CycleHandler{
		logger:    logger,
		runner:    runner,
		accountID: accountID,
	}
}

// RunCycle starts a cycle and blocks until it completes, returning the run
// id and result summary. A cycle already in flight yields 409.
// POST /api/cycle/run
func (h *CycleHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	trace, err := h.runner.RunCycle(r.Context(), h.accountID)
	if err != nil {
		if errors.Is(err, domain.ErrCycleInProgress) {
			writeError(w, http.StatusConflict, "a cycle is already running for this account")
			return
		}
		h.logger.Error("manual cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cycle failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": trace.RunID,
		"status": trace.Status,
		"result": trace.Result,
	})
}
