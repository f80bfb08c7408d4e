package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTopQueries = 100

// StatsHandler serves GET /api/v1/analytics from an Aggregator. The optional
// top parameter sets how many frequent and zero-result queries are listed.
type StatsHandler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewStatsHandler(aggregator *Aggregator) *StatsHandler {
	return &StatsHandler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-stats"),
	}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	top := defaultTopQueries
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopQueries {
			h.write(w, http.StatusBadRequest, map[string]string{
				"error": "top must be an integer between 1 and " + strconv.Itoa(maxTopQueries),
			})
			return
		}
		top = n
	}
	w.Header().Set("Cache-Control", "no-store")
	h.write(w, http.StatusOK, h.aggregator.Snapshot(top))
}

func (h *StatsHandler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
