package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil || s.deps.LLM.Stats() == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.deps.LLM.Model(),
		"stats": s.deps.LLM.Stats().Snapshot(),
	})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Index.Stats(r.Context())
	if err != nil {
		s.log.Error("index stats failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	resp := map[string]any{
		"index":    stats,
		"sessions": s.deps.Sessions.Len(),
	}
	if s.deps.Ingest != nil {
		resp["queue_depth"] = s.deps.Ingest.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
