// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/internal/domain/types"
	"github.com/okian/arenawatch/pkg/logger"
)

// Analyzer answers analysis queries.
type Analyzer interface {
	Analyze(ctx context.Context, category model.Category) (*types.Analysis, error)
	Rankings(ctx context.Context, category model.Category, limit int) ([]types.RankedModel, error)
	MaxRankingsLimit() int
	Categories() []model.Category
}

// Refresher drops cached results and pulls fresh live data.
type Refresher interface {
	Invalidate(ctx context.Context)
	Refresh(ctx context.Context) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Analyzer
	Refresher
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysisHandler *AnalysisHandler
	reportHandler   *ReportHandler
	refreshHandler  *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, l logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		analysisHandler: NewAnalysisHandler(deps, l),
		reportHandler:   NewReportHandler(deps, l),
		refreshHandler:  NewRefreshHandler(deps, l),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analysis/", MetricsMiddleware(s.analysisHandler.HandleGetAnalysis, "analysis"))
	mux.HandleFunc("/rankings/", MetricsMiddleware(s.analysisHandler.HandleGetRankings, "rankings"))
	mux.HandleFunc("/report", MetricsMiddleware(s.reportHandler.HandleGetReport, "report"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeError(w, status, code, err)
}

// categoryParam extracts and parses the single path segment after prefix.
func categoryParam(op string, r *http.Request, prefix string) (model.Category, error) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return "", NewKind(op, ErrBadRequest)
	}
	cat, err := model.ParseCategory(raw)
	if err != nil {
		return "", WrapKind(op, ErrBadRequest, err)
	}
	return cat, nil
}
