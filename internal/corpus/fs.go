package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// FSSource reads documents from a directory tree. Paths are matched against
// doublestar include and exclude globs relative to the root, using forward
// slashes on every platform.
type FSSource struct {
	root     string
	includes []string
	excludes []string
	workers  int
	logger   *slog.Logger
}

func NewFSSource(cfg config.CorpusConfig) *FSSource {
	includes := cfg.Includes
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &FSSource{
		root:     cfg.Dir,
		includes: includes,
		excludes: cfg.Excludes,
		workers:  workers,
		logger:   slog.Default().With("component", "corpus-fs", "root", cfg.Dir),
	}
}

func (s *FSSource) Name() string {
	return "fs:" + s.root
}

// Records reads every matching file on a worker pool and returns the records
// sorted by docname.
func (s *FSSource) Records(ctx context.Context) ([]Record, error) {
	paths, err := s.walk(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("creating reader pool: %w", err)
	}
	defer pool.Release()

	records := make([]Record, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, rel := range paths {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			records[i], errs[i] = s.readRecord(rel)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting %s: %w", rel, err)
		}
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		failed++
		records[i].Err = apperrors.Newf(apperrors.ErrBuildInput, http.StatusBadRequest, "%v", err)
		s.logger.Warn("unreadable file", "path", paths[i], "error", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].DocName < records[j].DocName })
	s.logger.Info("corpus read", "files", len(records), "unreadable", failed, "workers", s.workers)
	return records, nil
}

// walk returns the slash-separated relative paths of matching files in
// lexical order.
func (s *FSSource) walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (s.excluded(rel) || s.excluded(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.included(rel) && !s.excluded(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}
	return paths, nil
}

func (s *FSSource) included(rel string) bool {
	return matchAny(s.includes, rel)
}

func (s *FSSource) excluded(rel string) bool {
	return matchAny(s.excludes, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *FSSource) readRecord(rel string) (Record, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		ext := path.Ext(rel)
		return Record{DocName: strings.TrimSuffix(rel, ext), FileName: rel}, fmt.Errorf("reading %s: %w", rel, err)
	}
	ext := path.Ext(rel)
	title, body := Extract(ext, string(data))
	if title == "" {
		title = strings.TrimSuffix(path.Base(rel), ext)
	}
	return Record{
		DocName:  strings.TrimSuffix(rel, ext),
		Title:    title,
		FileName: rel,
		Body:     body,
	}, nil
}
