package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventIndexReload EventType = "index_reload"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Mode        string    `json:"mode"`
	FellBack    bool      `json:"fell_back"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// IndexEvent records that a server started serving a new index.
type IndexEvent struct {
	Type        EventType `json:"type"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Timestamp   time.Time `json:"timestamp"`
}

// envelope peeks at the type tag shared by every event.
type envelope struct {
	Type EventType `json:"type"`
}
