package kafka

import "time"

// IndexPublished announces that a new index file has been written. Search
// servers watching the topic reload when Path matches their index.
type IndexPublished struct {
	BuildID     string    `json:"build_id"`
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	PublishedAt time.Time `json:"published_at"`
}
