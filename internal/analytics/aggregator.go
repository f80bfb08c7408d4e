// Package analytics tracks what users search for: an in-process aggregator
// for the stats endpoint and a collector that ships events to Kafka.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	// maxTrackedQueries bounds each per-query count map.
	maxTrackedQueries = 10000
	defaultTopQueries = 10
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	IndexReloads      int64        `json:"index_reloads"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	FallbackCount     int64        `json:"fallback_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Fingerprint       string       `json:"fingerprint,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Tracker receives search events.
type Tracker interface {
	Track(event SearchEvent)
}

// Tee fans an event out to every non-nil tracker.
func Tee(trackers ...Tracker) Tracker {
	out := make(tee, 0, len(trackers))
	for _, t := range trackers {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

type tee []Tracker

func (t tee) Track(event SearchEvent) {
	for _, tr := range t {
		tr.Track(event)
	}
}

type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	indexReloads      atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	fallbacks         atomic.Int64
	latencies         []int64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	maxQueries        int
	fingerprint       string
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		maxQueries:        maxTrackedQueries,
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records a search event.
func (a *Aggregator) Track(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}
	if event.FellBack {
		a.fallbacks.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Latencies are a ring of the most recent samples.
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
	a.queryCounts = a.countQuery(a.queryCounts, event.Query)
	if event.TotalHits == 0 {
		a.zeroResultQueries = a.countQuery(a.zeroResultQueries, event.Query)
	}
}

// countQuery increments query in counts. A query not yet tracked when counts
// is full first evicts the less frequent half, ties dropping the
// alphabetically later query.
func (a *Aggregator) countQuery(counts map[string]int64, query string) map[string]int64 {
	if _, ok := counts[query]; !ok && len(counts) >= a.maxQueries {
		kept := topN(counts, a.maxQueries/2)
		a.logger.Debug("evicting infrequent queries", "tracked", len(counts), "kept", len(kept))
		counts = make(map[string]int64, a.maxQueries)
		for _, qc := range kept {
			counts[qc.Query] = qc.Count
		}
	}
	counts[query]++
	return counts
}

// TrackIndex records that a new index went into service.
func (a *Aggregator) TrackIndex(event IndexEvent) {
	a.indexReloads.Add(1)
	a.mu.Lock()
	a.fingerprint = event.Fingerprint
	a.mu.Unlock()
}

// HandleEvent returns a Kafka handler that feeds search and index events
// into agg. Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var env envelope
		if err := json.Unmarshal(value, &env); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.Track(event)
		case EventIndexReload:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.TrackIndex(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

// Stats is Snapshot with the default number of listed queries.
func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(defaultTopQueries)
}

// Snapshot returns the current aggregates, listing the top most frequent
// queries and zero-result queries.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		IndexReloads:    a.indexReloads.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		FallbackCount:   a.fallbacks.Load(),
		Fingerprint:     a.fingerprint,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, top)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, top)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
