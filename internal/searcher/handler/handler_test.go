package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

type staticSource struct {
	exec *executor.Executor
}

func (s staticSource) Current() (*executor.Executor, error) {
	if s.exec == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return s.exec, nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(e analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func testSource(t *testing.T) staticSource {
	t.Helper()
	records := []corpus.Record{
		{DocName: "install", Title: "Install Guide", FileName: "install.html", Body: "install the package"},
		{DocName: "remove", Title: "Uninstall", FileName: "remove.html", Body: "remove the package"},
		{DocName: "api", Title: "API", FileName: "api.html", Body: "reference",
			Objects: []corpus.Object{
				{FullName: "pkg.install", Type: "py:function", TypeLabel: "Python function"},
				{FullName: "pkg.Installer", Type: "py:class", TypeLabel: "Python class"},
			}},
	}
	idx, _, err := indexer.NewBuilder(config.IndexerConfig{Workers: 2, MinTokenLength: 3}, nil).
		Build(context.Background(), records)
	require.NoError(t, err)
	e, err := executor.New(idx)
	require.NoError(t, err)
	return staticSource{exec: e}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestSearch(t *testing.T) {
	mux := newMux(New(testSource(t), 10, 100))

	res := decodeResult(t, do(t, mux, http.MethodGet, "/api/v1/search?q=install"))
	assert.Equal(t, "install", res.Query)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "install", res.Results[0].DocName)
	assert.Equal(t, "and_fallback_or", res.Mode)
}

func TestSearchBadRequests(t *testing.T) {
	mux := newMux(New(testSource(t), 10, 100))
	for _, target := range []string{
		"/api/v1/search?q=install&limit=abc",
		"/api/v1/search?q=install&limit=0",
		"/api/v1/search?q=install&mode=fuzzy",
	} {
		rec := do(t, mux, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestSearchBlankQueryIsEmptyResult(t *testing.T) {
	tracker := &recordingTracker{}
	mux := newMux(New(testSource(t), 10, 100, WithTracker(tracker)))
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=",
		"/api/v1/search?q=%20%20",
	} {
		rec := do(t, mux, http.MethodGet, target)
		res := decodeResult(t, rec)
		assert.Empty(t, res.Results, target)
		assert.Equal(t, 0, res.TotalHits, target)
		assert.Contains(t, rec.Body.String(), `"results":[]`, target)
	}
	assert.Empty(t, tracker.events)
}

func TestSearchIndexNotLoaded(t *testing.T) {
	mux := newMux(New(staticSource{}, 10, 100))
	rec := do(t, mux, http.MethodGet, "/api/v1/search?q=install")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not loaded")

	rec = do(t, mux, http.MethodGet, "/api/v1/index")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchLimitIsCapped(t *testing.T) {
	mux := newMux(New(testSource(t), 10, 1))
	res := decodeResult(t, do(t, mux, http.MethodGet, "/api/v1/search?q=package&mode=or&limit=50"))
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, "or", res.Mode)
}

func TestSearchObjectTypes(t *testing.T) {
	mux := newMux(New(testSource(t), 10, 100))
	res := decodeResult(t, do(t, mux, http.MethodGet, "/api/v1/search?q=pkg.install&types=py:class"))
	require.NotEmpty(t, res.Results)
	for _, r := range res.Results {
		if r.Object != "" {
			assert.Equal(t, "py:class", r.ObjectType)
		}
	}
}

func TestSearchTracksAndRecordsMetrics(t *testing.T) {
	tracker := &recordingTracker{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(testSource(t), 10, 100, WithTracker(tracker), WithMetrics(m))
	mux := newMux(h)
	srv := middleware.Chain(mux, middleware.RequestID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=install", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, srv, http.MethodGet, "/api/v1/search?q=nothinghere")

	require.Len(t, tracker.events, 2)
	first := tracker.events[0]
	assert.Equal(t, analytics.EventSearch, first.Type)
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, []string{"install"}, first.Terms)
	assert.NotEmpty(t, first.Fingerprint)
	assert.Equal(t, 0, tracker.events[1].TotalHits)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestIndexInfo(t *testing.T) {
	src := testSource(t)
	mux := newMux(New(src, 10, 100))
	rec := do(t, mux, http.MethodGet, "/api/v1/index")
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "docsearch", info["format"])
	assert.Equal(t, 3.0, info["documents"])
	assert.Equal(t, 2.0, info["objects"])
	assert.Equal(t, src.exec.Fingerprint(), info["fingerprint"])
	assert.Equal(t, []any{"py:function", "py:class"}, info["objtypes"])
	tok, ok := info["tokenizer"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, tok, "stemmer")
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	mux := newMux(New(testSource(t), 10, 100))

	rec := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
