package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/arenawatch/internal/adapters/http/api"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	analyzeErr  error
	refreshErr  error
	invalidated int
	refreshed   int
	lastLimit   int
	maxLimit    int
}

func (m *mockDependencies) Analyze(_ context.Context, cat model.Category) (*types.Analysis, error) {
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	prev := 4
	gain := -3
	return &types.Analysis{
		RunID:      "run-1",
		Category:   string(cat),
		Degraded:   cat == model.CategoryCoding,
		Warnings:   []string{"no week-old baseline"},
		FastRisers: []types.Delta{{Key: "alpha", DisplayName: "Alpha", CurrentRank: 1, PreviousRank: &prev, Delta: &gain}},
		Rankings: []types.RankedModel{
			{Key: "alpha", DisplayName: "Alpha", Rank: 1, Score: 1500},
			{Key: "bravo", DisplayName: "Bravo", Rank: 2, Score: 1490},
		},
	}, nil
}

func (m *mockDependencies) Rankings(ctx context.Context, cat model.Category, limit int) ([]types.RankedModel, error) {
	m.lastLimit = limit
	a, err := m.Analyze(ctx, cat)
	if err != nil {
		return nil, err
	}
	return a.Top(limit), nil
}

func (m *mockDependencies) MaxRankingsLimit() int { return m.maxLimit }

func (m *mockDependencies) Categories() []model.Category { return model.Categories() }

func (m *mockDependencies) Invalidate(context.Context) { m.invalidated++ }

func (m *mockDependencies) Refresh(context.Context) error {
	m.refreshed++
	return m.refreshErr
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"snapshots": 3, "started": true}
}

func serve(deps *mockDependencies, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps, nil).Register(context.Background(), mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	return body
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps := &mockDependencies{maxLimit: 100}

		Convey("/healthz serves the metrics exposition", func() {
			w := serve(deps, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("/stats serves the provider's stats", func() {
			w := serve(deps, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")

			var body map[string]interface{}
			So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
			So(body["snapshots"], ShouldEqual, 3)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Wrong methods are not found", func() {
			So(serve(deps, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodDelete, "/healthz").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAnalysisEndpoint(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps := &mockDependencies{maxLimit: 100}

		Convey("A known category returns the analysis", func() {
			w := serve(deps, http.MethodGet, "/analysis/general")
			So(w.Code, ShouldEqual, http.StatusOK)

			var a types.Analysis
			So(json.NewDecoder(w.Body).Decode(&a), ShouldBeNil)
			So(a.Category, ShouldEqual, "general")
			So(a.FastRisers, ShouldHaveLength, 1)
			So(a.Rankings, ShouldHaveLength, 2)
		})

		Convey("Category matching ignores case", func() {
			So(serve(deps, http.MethodGet, "/analysis/CODING").Code, ShouldEqual, http.StatusOK)
		})

		Convey("An unknown category is a bad request", func() {
			w := serve(deps, http.MethodGet, "/analysis/music")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decodeError(w)
			So(body["code"], ShouldEqual, "bad_request")
			So(body["message"], ShouldContainSubstring, "music")
		})

		Convey("A missing or nested path is a bad request", func() {
			So(serve(deps, http.MethodGet, "/analysis/").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(deps, http.MethodGet, "/analysis/general/extra").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Service failures are internal errors", func() {
			deps.analyzeErr = errors.New("disk on fire")
			w := serve(deps, http.MethodGet, "/analysis/general")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w)["code"], ShouldEqual, "internal_error")
		})
	})
}

func TestRankingsEndpoint(t *testing.T) {
	Convey("Given a registered server with a limit cap of 50", t, func() {
		deps := &mockDependencies{maxLimit: 50}

		Convey("A valid limit truncates the rankings", func() {
			w := serve(deps, http.MethodGet, "/rankings/general?limit=1")
			So(w.Code, ShouldEqual, http.StatusOK)

			var rows []types.RankedModel
			So(json.NewDecoder(w.Body).Decode(&rows), ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].Key, ShouldEqual, "alpha")
		})

		Convey("An absent limit uses the default", func() {
			So(serve(deps, http.MethodGet, "/rankings/general").Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 20)
		})

		Convey("Invalid limits are rejected", func() {
			for _, q := range []string{"0", "-1", "abc"} {
				w := serve(deps, http.MethodGet, "/rankings/general?limit="+q)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("Limits above the cap are rejected", func() {
			w := serve(deps, http.MethodGet, fmt.Sprintf("/rankings/general?limit=%d", 51))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "limit_exceeded")
		})
	})
}

func TestReportEndpoint(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps := &mockDependencies{maxLimit: 100}

		Convey("The report covers every category as Markdown", func() {
			w := serve(deps, http.MethodGet, "/report")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "text/markdown")
			body := w.Body.String()
			So(body, ShouldContainSubstring, "## General")
			So(body, ShouldContainSubstring, "## Coding")
			So(body, ShouldContainSubstring, "Alpha")
		})

		Convey("A category filter narrows the report", func() {
			w := serve(deps, http.MethodGet, "/report?category=coding")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldNotContainSubstring, "## General")
		})

		Convey("An unknown category filter is a bad request", func() {
			So(serve(deps, http.MethodGet, "/report?category=music").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRefreshEndpoint(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps := &mockDependencies{maxLimit: 100}

		Convey("POST invalidates then refreshes", func() {
			w := serve(deps, http.MethodPost, "/refresh")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.invalidated, ShouldEqual, 1)
			So(deps.refreshed, ShouldEqual, 1)
			So(w.Body.String(), ShouldContainSubstring, `"status":"refreshed"`)
		})

		Convey("GET is not routed", func() {
			So(serve(deps, http.MethodGet, "/refresh").Code, ShouldEqual, http.StatusNotFound)
			So(deps.refreshed, ShouldEqual, 0)
		})

		Convey("A failed refresh is an upstream error", func() {
			deps.refreshErr = errors.New("arena down")
			w := serve(deps, http.MethodPost, "/refresh")
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decodeError(w)["code"], ShouldEqual, "upstream_error")
			So(deps.invalidated, ShouldEqual, 1)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")

		Convey("NewKind carries the kind and op", func() {
			err := api.NewKind("api.op", api.ErrBadRequest)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request")
		})

		Convey("Wrap defaults to an internal error and keeps the cause", func() {
			err := api.Wrap("api.op", cause)
			So(errors.Is(err, api.ErrInternal), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})

		Convey("WrapKind keeps both", func() {
			err := api.WrapKind("api.op", api.ErrUpstream, cause)
			So(errors.Is(err, api.ErrUpstream), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(strings.Count(err.Error(), ":"), ShouldEqual, 2)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped with the metrics middleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("The response passes through untouched", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
			So(w.Code, ShouldEqual, http.StatusTeapot)
			So(w.Body.String(), ShouldEqual, "short and stout")
		})
	})
}
