package api

import (
	"net/http"
)

func (s *Server) handleIndexerStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "indexer stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indexer":     s.cfg.Indexer,
		"queue_depth": s.runner.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	})
}
