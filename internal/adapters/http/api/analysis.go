package api

import (
	"net/http"
	"strconv"

	"github.com/okian/arenawatch/pkg/logger"
)

// defaultRankingsLimit applies when ?limit is absent.
const defaultRankingsLimit = 20

// AnalysisHandler serves per-category analysis and rankings.
type AnalysisHandler struct {
	deps   Analyzer
	logger logger.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps Analyzer, l logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{deps: deps, logger: l}
}

// HandleGetAnalysis handles GET /analysis/{category} requests.
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	cat, err := categoryParam(op, r, "/analysis/")
	if err != nil {
		fail(w, err)
		return
	}
	a, err := h.deps.Analyze(r.Context(), cat)
	if err != nil {
		h.logger.Error(r.Context(), "analysis failed", logger.String("category", string(cat)), logger.Error(err))
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleGetRankings handles GET /rankings/{category}?limit=N requests.
func (h *AnalysisHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	cat, err := categoryParam(op, r, "/rankings/")
	if err != nil {
		fail(w, err)
		return
	}

	n := min(defaultRankingsLimit, h.deps.MaxRankingsLimit())
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.deps.MaxRankingsLimit() {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}

	rows, err := h.deps.Rankings(r.Context(), cat, n)
	if err != nil {
		h.logger.Error(r.Context(), "rankings failed", logger.String("category", string(cat)), logger.Error(err))
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
