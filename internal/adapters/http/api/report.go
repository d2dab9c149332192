package api

import (
	"bytes"
	"net/http"

	"github.com/okian/arenawatch/internal/adapters/report"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/internal/domain/types"
	"github.com/okian/arenawatch/pkg/logger"
)

// ReportHandler renders analyses as Markdown.
type ReportHandler struct {
	deps   Analyzer
	logger logger.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Analyzer, l logger.Logger) *ReportHandler {
	return &ReportHandler{deps: deps, logger: l}
}

// HandleGetReport handles GET /report requests. An optional ?category
// narrows the report to one board.
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	cats := h.deps.Categories()
	if s := r.URL.Query().Get("category"); s != "" {
		cat, err := model.ParseCategory(s)
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		cats = []model.Category{cat}
	}

	analyses := make([]*types.Analysis, 0, len(cats))
	for _, cat := range cats {
		a, err := h.deps.Analyze(r.Context(), cat)
		if err != nil {
			h.logger.Error(r.Context(), "report analysis failed", logger.String("category", string(cat)), logger.Error(err))
			fail(w, Wrap(op, err))
			return
		}
		analyses = append(analyses, a)
	}

	var buf bytes.Buffer
	if err := report.NewMarkdownWriter(&buf).Write(analyses...); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
