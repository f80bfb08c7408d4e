package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

func (a *app) newServeCmd() *cobra.Command {
	var (
		indexPath string
		port      int
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an index over HTTP",
		Long: `Serve loads the index and answers queries on /api/v1/search. The index is
reloaded when its file changes (with --watch) or when a build announces it on
Kafka; a reload that fails keeps the previous index in service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("index") {
				a.cfg.Search.IndexPath = indexPath
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Search.WatchIndex = watch
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "index file (default search.indexPath)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default server.port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the index when its file changes")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	cfg := a.cfg
	log := slog.Default().With("component", "serve")
	m := metrics.New(prometheus.DefaultRegisterer)

	execOpts, err := a.executorOptions("")
	if err != nil {
		return err
	}
	execOpts = append(execOpts, executor.WithFallbackHook(m.SearchFallbacksTotal.Inc))

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cache.WithMetrics(m))
			log.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	trackers := []analytics.Tracker{aggregator}
	var collector *analytics.Collector
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, time.Second)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)
	}

	onReload := func(ctx context.Context, e *executor.Executor) {
		if queryCache != nil {
			if err := queryCache.Invalidate(ctx); err != nil {
				log.Warn("cache invalidation after reload failed", "error", err)
			}
		}
		event := analytics.IndexEvent{
			Type:        analytics.EventIndexReload,
			Fingerprint: e.Fingerprint(),
			Documents:   e.Index().DocCount(),
			Timestamp:   time.Now().UTC(),
		}
		aggregator.TrackIndex(event)
		if collector != nil {
			collector.TrackIndex(event)
		}
	}
	l := loader.New(cfg.Search.IndexPath,
		loader.WithExecutorOptions(execOpts...),
		loader.WithValidateOptions(a.validateOptions()),
		loader.WithDebounce(cfg.Search.ReloadDebounce),
		loader.WithMetrics(m),
		loader.OnReload(onReload),
	)
	if err := l.Reload(ctx); err != nil {
		if !cfg.Search.WatchIndex && !cfg.Kafka.Enabled() {
			return err
		}
		log.Warn("starting without an index, waiting for a reload", "error", err)
	}
	if cfg.Search.WatchIndex {
		go func() {
			if err := l.Watch(ctx); err != nil {
				log.Error("index watcher stopped", "error", err)
			}
		}()
	}
	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished, l.HandleIndexPublished(), kafka.WithUniqueGroup())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("index event consumer stopped", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", l.Check())
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
	}
	if cfg.Kafka.Enabled() {
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka)
		}, health.StatusDegraded))
	}

	h := handler.New(l, cfg.Search.DefaultLimit, cfg.Search.MaxResults,
		handler.WithCache(queryCache),
		handler.WithTracker(analytics.Tee(trackers...)),
		handler.WithMetrics(m),
	)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /api/v1/analytics", analytics.NewStatsHandler(aggregator))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		metricsSrv, err := metrics.Serve(fmt.Sprintf(":%d", cfg.Metrics.Port), "serve")
		if err != nil {
			return err
		}
		defer metricsSrv.Shutdown(context.Background())
	} else {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.CORSOrigins
	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cors),
		middleware.Metrics(m),
		middleware.RateLimit(cfg.Search.RateLimit, cfg.Search.RateBurst),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)
	return listenAndServe(ctx, &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)
}

// listenAndServe runs server until ctx is done, then shuts it down within
// shutdownTimeout.
func listenAndServe(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}
