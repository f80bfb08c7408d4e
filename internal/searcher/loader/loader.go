// Package loader owns the index served by a search process. The current
// executor sits behind an atomic pointer so queries never block on a reload,
// and a reload that fails leaves the previous index in service.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// ReloadHook runs after a new index has been swapped in.
type ReloadHook func(ctx context.Context, e *executor.Executor)

type Loader struct {
	path     string
	validate searchindex.ValidateOptions
	execOpts []executor.Option
	debounce time.Duration
	hooks    []ReloadHook
	metrics  *metrics.Metrics

	current atomic.Pointer[executor.Executor]
	mu      sync.Mutex
	logger  *slog.Logger
}

// Option customises a Loader.
type Option func(*Loader)

// WithExecutorOptions passes opts to every executor the loader creates.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(l *Loader) { l.execOpts = append(l.execOpts, opts...) }
}

// WithValidateOptions sets the accepted Sphinx environment versions.
func WithValidateOptions(v searchindex.ValidateOptions) Option {
	return func(l *Loader) { l.validate = v }
}

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) { l.debounce = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// OnReload registers a hook run after each successful reload that changed
// the index fingerprint.
func OnReload(hook ReloadHook) Option {
	return func(l *Loader) { l.hooks = append(l.hooks, hook) }
}

func New(path string, opts ...Option) *Loader {
	l := &Loader{
		path:     path,
		debounce: 250 * time.Millisecond,
		logger:   slog.Default().With("component", "index-loader", "path", path),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the index file being served.
func (l *Loader) Path() string {
	return l.path
}

// Current returns the executor for the loaded index.
func (l *Loader) Current() (*executor.Executor, error) {
	e := l.current.Load()
	if e == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return e, nil
}

// Reload reads the index file and swaps it in. On failure the previously
// loaded index, if any, stays current and the error is returned.
func (l *Loader) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	idx, err := searchindex.Load(l.path, l.validate)
	if err != nil {
		return l.failed(err)
	}
	opts := append([]executor.Option{executor.WithValidateOptions(l.validate)}, l.execOpts...)
	next, err := executor.New(idx, opts...)
	if err != nil {
		return l.failed(err)
	}

	prev := l.current.Swap(next)
	if prev != nil && prev.Fingerprint() == next.Fingerprint() {
		l.record("unchanged")
		l.logger.Debug("index unchanged", "fingerprint", next.Fingerprint())
		return nil
	}
	l.record("success")
	if l.metrics != nil {
		l.metrics.IndexDocuments.Set(float64(idx.DocCount()))
		l.metrics.IndexTerms.Set(float64(len(idx.Terms)))
	}
	l.logger.Info("index loaded",
		"documents", idx.DocCount(),
		"terms", len(idx.Terms),
		"objects", idx.ObjectCount(),
		"fingerprint", next.Fingerprint(),
		"duration", time.Since(start),
	)
	for _, hook := range l.hooks {
		hook(ctx, next)
	}
	return nil
}

func (l *Loader) failed(err error) error {
	l.record("failed")
	if l.current.Load() != nil {
		l.logger.Error("index reload failed, keeping previous index", "error", err)
	} else {
		l.logger.Error("index load failed", "error", err)
	}
	return fmt.Errorf("reloading index: %w", err)
}

func (l *Loader) record(status string) {
	if l.metrics != nil {
		l.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Watch reloads the index whenever its file is written or replaced, until
// ctx is cancelled. The parent directory is watched so that atomic renames
// are observed.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating index watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(l.path)
	if err != nil {
		return fmt.Errorf("resolving index path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	l.logger.Info("watching index file", "debounce", l.debounce)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			// Errors are logged by Reload.
			_ = l.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("index watcher error", "error", err)
		}
	}
}

// HandleIndexPublished returns a Kafka handler that reloads when a build
// publishes a new version of the served file. Events for other paths and
// for the fingerprint already loaded are ignored.
func (l *Loader) HandleIndexPublished() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[kafka.IndexPublished](value)
		if err != nil {
			l.logger.Error("dropping malformed index event", "error", err)
			return nil
		}
		if event.Path != "" && !samePath(event.Path, l.path) {
			l.logger.Debug("ignoring index event for other path", "event_path", event.Path)
			return nil
		}
		if cur := l.current.Load(); cur != nil && cur.Fingerprint() == event.Fingerprint {
			return nil
		}
		l.logger.Info("index published", "build_id", event.BuildID, "fingerprint", event.Fingerprint)
		if err := l.Reload(ctx); err != nil && !errors.Is(err, apperrors.ErrFormat) {
			return err
		}
		return nil
	}
}

// Check reports the service down until an index is loaded.
func (l *Loader) Check() health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		e := l.current.Load()
		if e == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, fingerprint %s", e.Index().DocCount(), shortFingerprint(e.Fingerprint())),
		}
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
