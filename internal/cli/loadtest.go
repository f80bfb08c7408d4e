package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Rate        float64
	Limit       int
	Queries     []string
}

type loadStats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 4096),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *loadStats) record(d time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, d)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func (a *app) newLoadTestCmd() *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "loadtest [flags] <query>...",
		Short: "Replay queries against a running search server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Queries = args
			if cfg.Concurrency < 1 {
				return fmt.Errorf("concurrency must be positive")
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(w, "concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(w, "duration:    %s\n", cfg.Duration)
			fmt.Fprintf(w, "queries:     %d unique\n\n", len(cfg.Queries))

			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        cfg.Concurrency * 2,
					MaxIdleConnsPerHost: cfg.Concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			}
			stats, elapsed := runLoadTest(cmd.Context(), client, cfg)
			printLoadReport(w, stats, elapsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search server")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", 10, "concurrent workers")
	cmd.Flags().DurationVarP(&cfg.Duration, "duration", "d", 30*time.Second, "test duration")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", 0, "overall requests per second, 0 for unlimited")
	cmd.Flags().IntVarP(&cfg.Limit, "limit", "n", 10, "results requested per query")
	return cmd
}

// runLoadTest issues queries round-robin from every worker until the
// duration elapses or ctx is cancelled.
func runLoadTest(ctx context.Context, client *http.Client, cfg loadConfig) (*loadStats, time.Duration) {
	stats := newLoadStats()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), int(math.Max(1, cfg.Rate/10)))
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return nil
					}
				}
				if ctx.Err() != nil {
					return nil
				}
				query := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", base, url.QueryEscape(query), cfg.Limit)

				reqStart := time.Now()
				status, err := doSearch(ctx, client, target)
				if ctx.Err() != nil {
					// Requests cut short by the deadline are not counted.
					return nil
				}
				stats.record(time.Since(reqStart), status, err)
			}
		})
	}
	_ = g.Wait()
	return stats, time.Since(start)
}

func doSearch(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func printLoadReport(w io.Writer, stats *loadStats, elapsed time.Duration) {
	total := stats.totalRequests.Load()
	fmt.Fprintln(w, "=== results ===")
	fmt.Fprintf(w, "requests:    %d\n", total)
	fmt.Fprintf(w, "successful:  %d\n", stats.successCount.Load())
	fmt.Fprintf(w, "errors:      %d\n", stats.errorCount.Load())
	if total == 0 {
		fmt.Fprintln(w, "\nno requests completed, is the server running?")
		return
	}
	fmt.Fprintf(w, "error rate:  %.2f%%\n", float64(stats.errorCount.Load())/float64(total)*100)
	fmt.Fprintf(w, "req/sec:     %.2f\n", float64(total)/elapsed.Seconds())

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w, "\n=== latency ===")
		fmt.Fprintf(w, "min: %s\n", latencies[0])
		fmt.Fprintf(w, "avg: %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(w, "p50: %s\n", latencyPercentile(latencies, 50))
		fmt.Fprintf(w, "p95: %s\n", latencyPercentile(latencies, 95))
		fmt.Fprintf(w, "p99: %s\n", latencyPercentile(latencies, 99))
		fmt.Fprintf(w, "max: %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w, "\n=== status codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()
}

// latencyPercentile expects sorted input.
func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
