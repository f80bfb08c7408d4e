// Package indexer turns a corpus of document records into a frozen search
// index. Tokenization fans out over worker goroutines that each own a private
// partial index; the partials are merged by set union before freezing.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// BuildReport summarises a build.
type BuildReport struct {
	Documents  int
	Skipped    int
	Terms      int
	TitleTerms int
	Objects    int
	Duration   time.Duration
	Errors     []error
}

// Option customises a Builder.
type Option func(*Builder)

// WithMetrics records indexed and skipped documents and build duration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithProgress registers a callback invoked once per tokenized document. It
// is called from worker goroutines and must be safe for concurrent use.
func WithProgress(fn func()) Option {
	return func(b *Builder) { b.progress = fn }
}

// Builder produces search indexes. A Builder holds no per-build state and may
// be reused.
type Builder struct {
	cfg      config.IndexerConfig
	tok      *tokenizer.Tokenizer
	metrics  *metrics.Metrics
	progress func()
	logger   *slog.Logger
}

func NewBuilder(cfg config.IndexerConfig, tok *tokenizer.Tokenizer, opts ...Option) *Builder {
	if tok == nil {
		tok = tokenizer.New(tokenizer.Settings{MinLength: cfg.MinTokenLength, StopWords: cfg.StopWords})
	}
	b := &Builder{
		cfg:    cfg,
		tok:    tok,
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type keyedRecord struct {
	key int
	rec *corpus.Record
}

// Build indexes records in input order. Invalid or duplicate records, and
// records a source could not read, are logged, reported and skipped. Build fails only when the context is done or
// every supplied record was rejected; an empty corpus yields an empty index.
func (b *Builder) Build(ctx context.Context, records []corpus.Record) (*searchindex.Index, *BuildReport, error) {
	start := time.Now()
	report := &BuildReport{}

	accepted := b.admit(records, report)
	if len(records) > 0 && len(accepted) == 0 {
		report.Duration = time.Since(start)
		return nil, report, fmt.Errorf("%w: %d records rejected", apperrors.ErrAllDocumentsFailed, len(records))
	}

	merged, err := b.tokenizeAll(ctx, accepted)
	if err != nil {
		return nil, report, err
	}

	idx := b.freeze(accepted, merged)
	report.Documents = idx.DocCount()
	report.Terms = len(idx.Terms)
	report.TitleTerms = len(idx.TitleTerms)
	report.Objects = idx.ObjectCount()
	report.Duration = time.Since(start)

	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Add(float64(report.Documents))
		b.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
	}
	b.logger.Info("index built",
		"documents", report.Documents,
		"skipped", report.Skipped,
		"terms", report.Terms,
		"title_terms", report.TitleTerms,
		"objects", report.Objects,
		"workers", b.workers(len(accepted)),
		"duration", report.Duration,
	)
	return idx, report, nil
}

// admit validates records and assigns sequential document keys.
func (b *Builder) admit(records []corpus.Record, report *BuildReport) []keyedRecord {
	accepted := make([]keyedRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	for i := range records {
		rec := &records[i]
		err := rec.Err
		if err == nil {
			err = validator.ValidateRecord(rec)
		}
		if err == nil {
			if first, dup := seen[strings.TrimSpace(rec.DocName)]; dup {
				err = apperrors.Newf(apperrors.ErrBuildInput, http.StatusBadRequest,
					"duplicate docname %q (first seen at record %d)", rec.DocName, first)
			}
		}
		if err != nil {
			b.skip(i, rec, err, report)
			continue
		}
		seen[strings.TrimSpace(rec.DocName)] = i
		accepted = append(accepted, keyedRecord{key: len(accepted), rec: rec})
	}
	return accepted
}

func (b *Builder) skip(i int, rec *corpus.Record, err error, report *BuildReport) {
	report.Skipped++
	report.Errors = append(report.Errors, fmt.Errorf("record %d (%q): %w", i, rec.DocName, err))
	if b.metrics != nil {
		b.metrics.DocsSkippedTotal.Inc()
	}
	b.logger.Warn("skipping document record",
		"record", i,
		"docname", rec.DocName,
		"error", err,
	)
}

func (b *Builder) workers(n int) int {
	w := b.cfg.Workers
	if w < 1 {
		w = 1
	}
	if n > 0 && w > n {
		w = n
	}
	return w
}

func (b *Builder) tokenizeAll(ctx context.Context, accepted []keyedRecord) (*index.PartialIndex, error) {
	workers := b.workers(len(accepted))
	partials := make([]*index.PartialIndex, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			partial := index.NewPartialIndex()
			for i := w; i < len(accepted); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				kr := accepted[i]
				partial.AddDocument(kr.key, b.tok.Terms(kr.rec.Title), b.tok.Terms(kr.rec.Body))
				if b.progress != nil {
					b.progress()
				}
			}
			partials[w] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tokenizing documents: %w", err)
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		merged.Merge(p)
	}
	return merged, nil
}

func (b *Builder) freeze(accepted []keyedRecord, merged *index.PartialIndex) *searchindex.Index {
	idx := searchindex.New()
	idx.DocNames = make([]string, len(accepted))
	idx.FileNames = make([]string, len(accepted))
	idx.Titles = make([]string, len(accepted))
	for _, kr := range accepted {
		idx.DocNames[kr.key] = strings.TrimSpace(kr.rec.DocName)
		idx.FileNames[kr.key] = kr.rec.FileName
		idx.Titles[kr.key] = strings.TrimSpace(kr.rec.Title)
	}
	idx.Terms, idx.TitleTerms = merged.Freeze()

	settings := b.tok.Settings()
	idx.Tokenizer = &searchindex.TokenizerSettings{
		MinLength: settings.MinLength,
		StopWords: settings.StopWords,
		Stemmer:   settings.Stemmer,
	}

	types := make(map[string]int)
	for _, kr := range accepted {
		for _, obj := range kr.rec.Objects {
			b.addObject(idx, types, kr.key, obj)
		}
	}
	return idx
}

// addObject stores obj under its dotted prefix, assigning type indexes in
// order of first appearance.
func (b *Builder) addObject(idx *searchindex.Index, types map[string]int, doc int, obj corpus.Object) {
	typeIdx, ok := types[obj.Type]
	if !ok {
		typeIdx = len(types)
		types[obj.Type] = typeIdx
		domain, typ, _ := strings.Cut(obj.Type, ":")
		label := obj.TypeLabel
		if label == "" {
			label = domain + " " + typ
		}
		key := searchindex.TypeKey(typeIdx)
		idx.ObjTypes[key] = obj.Type
		idx.ObjNames[key] = searchindex.ObjName{Domain: domain, Type: typ, Label: label}
	}

	fullName := strings.TrimSpace(obj.FullName)
	prefix, name := splitFullName(fullName)
	anchor := obj.Anchor
	switch anchor {
	case fullName:
		anchor = ""
	case idx.ObjNames[searchindex.TypeKey(typeIdx)].Type + "-" + fullName:
		anchor = "-"
	}

	names, ok := idx.Objects[prefix]
	if !ok {
		names = make(map[string]searchindex.ObjectEntry)
		idx.Objects[prefix] = names
	}
	if _, dup := names[name]; dup {
		b.logger.Debug("duplicate object ignored", "object", fullName, "doc", idx.DocNames[doc])
		return
	}
	names[name] = searchindex.ObjectEntry{Doc: doc, Type: typeIdx, Priority: obj.Priority, Anchor: anchor}
}

// splitFullName splits at the last dot. Names without a dot have an empty
// prefix.
func splitFullName(fullName string) (prefix, name string) {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[:i], fullName[i+1:]
	}
	return "", fullName
}
