package api

import (
	"context"
	"maps"
	"net/http"
)

// StatsProvider reports runtime counters for GET /stats.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler merges the counters of several providers; later providers
// win on key clashes.
type StatsHandler struct {
	providers []StatsProvider
}

// NewStatsHandler creates a stats handler over providers.
func NewStatsHandler(providers ...StatsProvider) *StatsHandler {
	return &StatsHandler{providers: providers}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)
	for _, p := range h.providers {
		maps.Copy(out, p.GetStats(r.Context()))
	}
	writeJSON(w, http.StatusOK, out)
}
