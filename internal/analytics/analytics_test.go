package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(SearchEvent{Type: EventSearch, Query: "install", TotalHits: 2, LatencyMs: 10})
	agg.Track(SearchEvent{Type: EventSearch, Query: "install", TotalHits: 2, LatencyMs: 20, CacheHit: true})
	agg.Track(SearchEvent{Type: EventSearch, Query: "zzz", TotalHits: 0, LatencyMs: 30})
	agg.Track(SearchEvent{Type: EventSearch, Query: "install remove", TotalHits: 1, LatencyMs: 40, FellBack: true})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.FallbackCount)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, int64(40), stats.P99LatencyMs)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "install", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, stats.ZeroResultQueries)
}

func TestLatencySamplesAreBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Track(SearchEvent{Query: "q", TotalHits: 1, LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalSearches)
}

func TestQueryCountsAreBounded(t *testing.T) {
	agg := NewAggregator()
	agg.maxQueries = 4
	track := func(query string, times int) {
		for i := 0; i < times; i++ {
			agg.Track(SearchEvent{Query: query, TotalHits: 0})
		}
	}
	track("install", 3)
	track("package", 2)
	track("remove", 1)
	track("upgrade", 1)
	require.Len(t, agg.queryCounts, 4)

	track("zzz", 1)
	assert.Len(t, agg.queryCounts, 3)
	assert.Len(t, agg.zeroResultQueries, 3)
	assert.Equal(t, []QueryCount{
		{Query: "install", Count: 3},
		{Query: "package", Count: 2},
		{Query: "zzz", Count: 1},
	}, agg.Stats().TopQueries)

	track("install", 1)
	assert.Len(t, agg.queryCounts, 3)
	assert.Equal(t, int64(9), agg.Stats().TotalSearches)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	search, err := json.Marshal(SearchEvent{Type: EventSearch, Query: "install", TotalHits: 1})
	require.NoError(t, err)
	index, err := json.Marshal(IndexEvent{Type: EventIndexReload, Fingerprint: "abc", Documents: 3})
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), nil, search))
	require.NoError(t, handle(context.Background(), nil, index))
	require.NoError(t, handle(context.Background(), nil, []byte("{broken")))
	require.NoError(t, handle(context.Background(), nil, []byte(`{"type":"mystery"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.IndexReloads)
	assert.Equal(t, "abc", stats.Fingerprint)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{event})
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 50, time.Hour)
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Type: EventSearch, Query: "install"})
	}
	c.TrackIndex(IndexEvent{Type: EventIndexReload, Fingerprint: "abc"})
	c.Close()

	assert.Equal(t, 6, pub.count())
	assert.Equal(t, "search", pub.batches[0][0].Key)
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())
	defer c.Close()

	c.Track(SearchEvent{Type: EventSearch, Query: "a"})
	c.Track(SearchEvent{Type: EventSearch, Query: "b"})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 1, 10, time.Hour)
	// Not started: the buffer fills after one event.
	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	assert.Len(t, c.eventCh, 1)
}

func TestTeeSkipsNil(t *testing.T) {
	a, b := NewAggregator(), NewAggregator()
	tr := Tee(a, nil, b)
	tr.Track(SearchEvent{Query: "q", TotalHits: 1})
	assert.Equal(t, int64(1), a.Stats().TotalSearches)
	assert.Equal(t, int64(1), b.Stats().TotalSearches)
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"install", "install", "remove", "package"} {
		agg.Track(SearchEvent{Query: q, TotalHits: 1, LatencyMs: 5})
	}
	h := NewStatsHandler(agg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Len(t, stats.TopQueries, 3)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []QueryCount{{Query: "install", Count: 2}}, stats.TopQueries)

	for _, top := range []string{"0", "abc", "101"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+top, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, top)
		assert.Contains(t, rec.Body.String(), "top must be")
	}
}
