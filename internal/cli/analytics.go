package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

func (a *app) newAnalyticsCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Aggregate search events from every server",
		Long: `Analytics consumes the search events published by serve replicas and exposes
cluster-wide statistics on /api/v1/analytics. It requires Kafka.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runAnalytics(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default server.port)")
	return cmd
}

func (a *app) runAnalytics(ctx context.Context) error {
	cfg := a.cfg
	if !cfg.Kafka.Enabled() {
		return errors.New("analytics requires kafka.brokers to be configured")
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	aggregator := analytics.NewAggregator()

	kcfg := cfg.Kafka
	kcfg.ConsumerGroup = kcfg.ConsumerGroup + "-analytics"
	consumer := kafka.NewConsumer(kcfg, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka)
	}, health.StatusDown))

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/analytics", analytics.NewStatsHandler(aggregator))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	return listenAndServe(ctx, &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)
}
