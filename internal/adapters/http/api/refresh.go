package api

import (
	"net/http"
	"time"

	"github.com/okian/arenawatch/pkg/logger"
)

// RefreshHandler forces a live refresh.
type RefreshHandler struct {
	deps   Refresher
	logger logger.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Refresher, l logger.Logger) *RefreshHandler {
	return &RefreshHandler{deps: deps, logger: l}
}

type refreshResponse struct {
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

// HandleRefresh handles POST /refresh requests. Cached analyses are dropped
// before live data is fetched, so a failed fetch still forces the next
// read to recompute from held snapshots.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	start := time.Now()
	h.deps.Invalidate(r.Context())
	if err := h.deps.Refresh(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "refresh failed", logger.Error(err))
		fail(w, WrapKind(op, ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Status: "refreshed", DurationMs: time.Since(start).Milliseconds()})
}
