// Package handler serves the search HTTP API on top of the loaded index.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// IndexSource yields the executor for the index currently in service.
type IndexSource interface {
	Current() (*executor.Executor, error)
}

type Handler struct {
	source       IndexSource
	cache        *cache.QueryCache
	tracker      analytics.Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithCache answers repeated queries from c.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithTracker reports every answered query to t.
func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(source IndexSource, defaultLimit, maxResults int, opts ...Option) *Handler {
	h := &Handler{
		source:       source,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	// A missing or blank q is answered with an empty result.
	query := params.Get("q")
	blank := strings.TrimSpace(query) == ""
	opts, err := h.parseOptions(params)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	exec, err := h.source.Current()
	if err != nil {
		h.fail(w, log, query, err)
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	compute := func() (*executor.SearchResult, error) {
		return exec.SearchWithOptions(ctx, query, opts)
	}
	if h.cache != nil && !blank {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(exec, query, opts), compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		h.fail(w, log, query, err)
		return
	}
	// Cached results are shared between equivalent queries.
	if result.Query != query {
		copied := *result
		copied.Query = query
		result = &copied
	}

	latency := time.Since(start)
	h.observe(result, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"mode", result.Mode,
		"fell_back", result.FellBack,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil && !blank {
		h.tracker.Track(analytics.SearchEvent{
			Type:        analytics.EventSearch,
			Query:       query,
			Terms:       parser.Parse(exec.Tokenizer(), query).Terms,
			Mode:        result.Mode,
			FellBack:    result.FellBack,
			TotalHits:   result.TotalHits,
			Returned:    len(result.Results),
			LatencyMs:   latency.Milliseconds(),
			CacheHit:    cacheHit,
			Fingerprint: exec.Fingerprint(),
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseOptions(params map[string][]string) (executor.Options, error) {
	get := func(k string) string {
		if v := params[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	opts := executor.Options{Limit: h.defaultLimit}
	if limitStr := get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return opts, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = parsed
	}
	if h.maxResults > 0 && (opts.Limit == 0 || opts.Limit > h.maxResults) {
		opts.Limit = h.maxResults
	}
	mode, err := executor.ParseMode(get("mode"))
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	if types := get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.ObjectTypes = append(opts.ObjectTypes, t)
			}
		}
	}
	return opts, nil
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, query string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	}
	message := "search failed"
	switch {
	case errors.Is(err, apperrors.ErrIndexNotLoaded):
		message = "search index not loaded"
	case status == http.StatusBadRequest:
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		log.Error("search execution failed", "query", query, "error", err)
	} else {
		log.Warn("search rejected", "query", query, "error", err)
	}
	h.writeError(w, status, message)
}

// IndexInfo describes the index in service.
func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	exec, err := h.source.Current()
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "search index not loaded")
		return
	}
	idx := exec.Index()
	format := "docsearch"
	if idx.IsSphinx() {
		format = "sphinx"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"format":      format,
		"version":     idx.Version,
		"envversion":  idx.EnvVersion,
		"documents":   idx.DocCount(),
		"terms":       len(idx.Terms),
		"title_terms": len(idx.TitleTerms),
		"objects":     idx.ObjectCount(),
		"objtypes":    objTypes(idx),
		"fingerprint": exec.Fingerprint(),
		"mode":        exec.Mode().String(),
		"tokenizer":   tokenizerSettings(exec),
	})
}

func tokenizerSettings(exec *executor.Executor) searchindex.TokenizerSettings {
	s := exec.Tokenizer().Settings()
	return searchindex.TokenizerSettings{MinLength: s.MinLength, StopWords: s.StopWords, Stemmer: s.Stemmer}
}

func objTypes(idx *searchindex.Index) []string {
	out := make([]string, 0, len(idx.ObjTypes))
	for i := 0; i < len(idx.ObjTypes); i++ {
		if t, ok := idx.ObjTypes[searchindex.TypeKey(i)]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
