// Package executor answers queries against a frozen search index. An
// Executor is immutable after New and safe for concurrent use.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// Result is one ranked hit. Object hits carry the object's full name, type
// and resolved anchor; document hits leave them empty.
type Result struct {
	DocName    string   `json:"docname"`
	Title      string   `json:"title"`
	FileName   string   `json:"filename"`
	Anchor     string   `json:"anchor,omitempty"`
	Object     string   `json:"object,omitempty"`
	ObjectType string   `json:"object_type,omitempty"`
	Score      float64  `json:"score"`
	Highlight  []string `json:"highlight,omitempty"`
}

// TermStat counts the documents containing a query term.
type TermStat struct {
	TitleDocs int `json:"title_docs"`
	BodyDocs  int `json:"body_docs"`
}

// SearchResult is the outcome of a query. An empty Results slice is a normal
// outcome, not an error.
type SearchResult struct {
	Query     string              `json:"query"`
	Mode      string              `json:"mode"`
	FellBack  bool                `json:"fell_back"`
	TotalHits int                 `json:"total_hits"`
	Results   []Result            `json:"results"`
	TermStats map[string]TermStat `json:"term_stats"`
}

// Options refine a single query.
type Options struct {
	Limit int
	// Mode overrides the executor's mode unless it is ModeDefault.
	Mode Mode
	// ObjectTypes restricts object hits to these "domain:type" values.
	ObjectTypes []string
}

type object struct {
	fullName  string
	lowerFull string
	lowerName string
	doc       int
	typeIdx   int
	priority  int
	anchor    string
}

type Executor struct {
	idx         *searchindex.Index
	tok         *tokenizer.Tokenizer
	mode        Mode
	weights     ranker.Weights
	tables      ranker.TermTables
	objects     []object
	objGrams    objectGrams
	fingerprint string
	validate    searchindex.ValidateOptions
	fallbackTok *tokenizer.Tokenizer
	onFallback  func()
	logger      *slog.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithMode sets the default combination mode.
func WithMode(m Mode) Option {
	return func(e *Executor) { e.mode = m }
}

// WithWeights replaces the scoring weights.
func WithWeights(w ranker.Weights) Option {
	return func(e *Executor) { e.weights = w }
}

// WithTokenizer sets the tokenizer for docsearch indexes that do not record
// their own tokenizer settings. Sphinx indexes always use tokenizer.Sphinx so
// that queries are stemmed like the indexed terms.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(e *Executor) { e.fallbackTok = t }
}

// WithValidateOptions customises index validation.
func WithValidateOptions(v searchindex.ValidateOptions) Option {
	return func(e *Executor) { e.validate = v }
}

// WithFallbackHook registers a callback run whenever a query falls back from
// AND to OR.
func WithFallbackHook(fn func()) Option {
	return func(e *Executor) { e.onFallback = fn }
}

// New validates idx and prepares it for querying. An index that fails
// validation is rejected with a *searchindex.FormatError.
func New(idx *searchindex.Index, opts ...Option) (*Executor, error) {
	e := &Executor{
		idx:     idx,
		mode:    ModeAndFallbackOr,
		weights: ranker.DefaultWeights(),
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if idx == nil {
		return nil, fmt.Errorf("creating executor: %w", apperrors.ErrIndexNotLoaded)
	}
	if err := idx.Validate(e.validate); err != nil {
		return nil, err
	}
	if e.mode == ModeDefault {
		e.mode = ModeAndFallbackOr
	}

	switch {
	case idx.Tokenizer != nil:
		e.tok = tokenizer.New(tokenizer.Settings{
			MinLength: idx.Tokenizer.MinLength,
			StopWords: idx.Tokenizer.StopWords,
			Stemmer:   idx.Tokenizer.Stemmer,
		})
	case idx.IsSphinx():
		e.tok = tokenizer.Sphinx()
		e.logger.Info("sphinx index, stemming queries with porter",
			"sphinx_env", idx.EnvVersion["sphinx"])
	case e.fallbackTok != nil:
		e.tok = e.fallbackTok
		e.logger.Warn("index records no tokenizer settings, using configured tokenizer")
	default:
		e.tok = tokenizer.Default()
		e.logger.Warn("index records no tokenizer settings, using default tokenizer")
	}

	e.tables = ranker.TermTables{Title: idx.TitleTerms, Body: idx.Terms}
	e.objects = flattenObjects(idx)
	e.objGrams = newObjectGrams(e.objects)

	fp, err := idx.Fingerprint()
	if err != nil {
		return nil, err
	}
	e.fingerprint = fp
	return e, nil
}

func flattenObjects(idx *searchindex.Index) []object {
	out := make([]object, 0, idx.ObjectCount())
	for prefix, names := range idx.Objects {
		for name, entry := range names {
			full := name
			if prefix != "" {
				full = prefix + "." + name
			}
			out = append(out, object{
				fullName:  full,
				lowerFull: strings.ToLower(full),
				lowerName: strings.ToLower(name),
				doc:       entry.Doc,
				typeIdx:   entry.Type,
				priority:  entry.Priority,
				anchor:    entry.Anchor,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].fullName < out[j].fullName })
	return out
}

// Index returns the index being served. Callers must not modify it.
func (e *Executor) Index() *searchindex.Index {
	return e.idx
}

// Fingerprint returns the SHA-256 fingerprint of the served index.
func (e *Executor) Fingerprint() string {
	return e.fingerprint
}

// Tokenizer returns the tokenizer applied to queries.
func (e *Executor) Tokenizer() *tokenizer.Tokenizer {
	return e.tok
}

// Mode returns the default combination mode.
func (e *Executor) Mode() Mode {
	return e.mode
}

// Search runs query in the executor's mode. A limit of 0 means unlimited.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	return e.SearchWithOptions(ctx, query, Options{Limit: limit})
}

// SearchWithOptions runs query with per-call options.
func (e *Executor) SearchWithOptions(ctx context.Context, query string, opts Options) (*SearchResult, error) {
	if opts.Limit < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, "limit must not be negative, got %d", opts.Limit)
	}
	plan := parser.Parse(e.tok, query)
	mode := e.resolveMode(plan, opts.Mode)
	result := &SearchResult{
		Query:     query,
		Mode:      mode.String(),
		Results:   []Result{},
		TermStats: make(map[string]TermStat, len(plan.Terms)),
	}
	if plan.Empty() {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	postingsPerTerm := make(map[string]map[int]struct{}, len(plan.Terms))
	for _, term := range plan.Terms {
		title, body := e.tables.Title[term], e.tables.Body[term]
		result.TermStats[term] = TermStat{TitleDocs: len(title), BodyDocs: len(body)}
		postingsPerTerm[term] = docsWithTerm(title, body)
	}
	excluded := make(map[int]struct{})
	for _, term := range plan.ExcludeTerms {
		for doc := range docsWithTerm(e.tables.Title[term], e.tables.Body[term]) {
			excluded[doc] = struct{}{}
		}
	}

	var candidates map[int]struct{}
	switch mode {
	case ModeOr:
		candidates = unionPostings(postingsPerTerm)
	default:
		candidates = intersectPostings(postingsPerTerm)
	}
	removeAll(candidates, excluded)
	if len(candidates) == 0 && mode == ModeAndFallbackOr && len(plan.Terms) > 1 {
		candidates = unionPostings(postingsPerTerm)
		removeAll(candidates, excluded)
		result.FellBack = len(candidates) > 0
		if result.FellBack && e.onFallback != nil {
			e.onFallback()
		}
	}

	hits := make([]ranker.ScoredDoc, 0, len(candidates))
	payload := make([]Result, 0, len(candidates))
	for doc := range candidates {
		score, matched := ranker.ScoreDocument(doc, plan.Terms, e.tables, e.weights)
		hits = append(hits, ranker.ScoredDoc{DocName: e.idx.DocNames[doc], Score: score, Ref: len(payload)})
		payload = append(payload, Result{
			DocName:   e.idx.DocNames[doc],
			Title:     e.idx.Titles[doc],
			FileName:  e.idx.FileNames[doc],
			Score:     score,
			Highlight: matched,
		})
	}
	hits, payload = e.searchObjects(plan, opts.ObjectTypes, excluded, hits, payload)

	result.TotalHits = len(hits)
	ranked := ranker.Rank(hits, opts.Limit)
	result.Results = make([]Result, len(ranked))
	for i, h := range ranked {
		result.Results[i] = payload[h.Ref]
	}
	e.logger.Debug("query executed",
		"query", query,
		"terms", plan.Terms,
		"mode", result.Mode,
		"fell_back", result.FellBack,
		"total_hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

func (e *Executor) resolveMode(plan *parser.QueryPlan, override Mode) Mode {
	switch plan.Type {
	case parser.QueryAND:
		return ModeAnd
	case parser.QueryOR:
		return ModeOr
	}
	if override != ModeDefault {
		return override
	}
	return e.mode
}

func (e *Executor) searchObjects(plan *parser.QueryPlan, types []string, excluded map[int]struct{}, hits []ranker.ScoredDoc, payload []Result) ([]ranker.ScoredDoc, []Result) {
	if len(plan.ObjectTerms) == 0 || len(e.objects) == 0 {
		return hits, payload
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	candidates := e.objects
	if ids, ok := e.objGrams.candidates(plan.ObjectTerms); ok {
		candidates = make([]object, len(ids))
		for i, id := range ids {
			candidates[i] = e.objects[id]
		}
	}
	for _, obj := range candidates {
		if _, skip := excluded[obj.doc]; skip {
			continue
		}
		objType := e.idx.ObjTypes[searchindex.TypeKey(obj.typeIdx)]
		if len(allowed) > 0 {
			if _, ok := allowed[objType]; !ok {
				continue
			}
		}
		if !ranker.MatchesObject(obj.lowerFull, plan.ObjectTerms) {
			continue
		}
		score := ranker.ScoreObject(obj.lowerFull, obj.lowerName, plan.ObjectTerms, obj.priority, e.weights)
		anchor := e.resolveAnchor(obj)
		hits = append(hits, ranker.ScoredDoc{
			DocName: e.idx.DocNames[obj.doc],
			Anchor:  anchor,
			Object:  obj.fullName,
			Score:   score,
			Ref:     len(payload),
		})
		payload = append(payload, Result{
			DocName:    e.idx.DocNames[obj.doc],
			Title:      e.idx.Titles[obj.doc],
			FileName:   e.idx.FileNames[obj.doc],
			Anchor:     anchor,
			Object:     obj.fullName,
			ObjectType: objType,
			Score:      score,
			Highlight:  plan.ObjectTerms,
		})
	}
	return hits, payload
}

// resolveAnchor expands the stored anchor shorthands: "" is the full name and
// "-" is "<type>-<full name>".
func (e *Executor) resolveAnchor(obj object) string {
	switch obj.anchor {
	case "":
		return obj.fullName
	case "-":
		return e.idx.ObjNames[searchindex.TypeKey(obj.typeIdx)].Type + "-" + obj.fullName
	default:
		return obj.anchor
	}
}

func docsWithTerm(title, body searchindex.Postings) map[int]struct{} {
	docs := make(map[int]struct{}, len(title)+len(body))
	for _, d := range title {
		docs[d] = struct{}{}
	}
	for _, d := range body {
		docs[d] = struct{}{}
	}
	return docs
}

// intersectPostings returns documents present for every term. A term with
// no documents empties the result.
func intersectPostings(postingsPerTerm map[string]map[int]struct{}) map[int]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[int]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, docs := range postingsPerTerm {
		if len(docs) < shortestLen {
			shortestLen = len(docs)
			shortestTerm = term
		}
	}
	candidates := make(map[int]struct{}, shortestLen)
	for doc := range postingsPerTerm[shortestTerm] {
		candidates[doc] = struct{}{}
	}
	for term, docs := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		for doc := range candidates {
			if _, ok := docs[doc]; !ok {
				delete(candidates, doc)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]map[int]struct{}) map[int]struct{} {
	result := make(map[int]struct{})
	for _, docs := range postingsPerTerm {
		for doc := range docs {
			result[doc] = struct{}{}
		}
	}
	return result
}

func removeAll(set, remove map[int]struct{}) {
	for doc := range remove {
		delete(set, doc)
	}
}
