package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/manualqa/internal/assistant"
)

// maxAskBody caps the JSON body of an ask request.
const maxAskBody = 64 << 10

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Chapter   string `json:"chapter"`
	Heading   string `json:"heading"`
}

type source struct {
	ID      string `json:"id"`
	Page    int    `json:"page"`
	Chapter string `json:"chapter,omitempty"`
	Heading string `json:"heading,omitempty"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	*assistant.Answer
	Sources []source `json:"sources"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.deps.Sessions.GetOrCreate(req.SessionID)
	ans, err := s.deps.Assistant.Ask(r.Context(), sess, assistant.AskRequest{
		Question: req.Question,
		Chapter:  req.Chapter,
		Heading:  req.Heading,
	})
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("ask failed", "session_id", sess.ID, "error", err)
		jsonError(w, "retrieval failed", http.StatusBadGateway)
		return
	}

	sources := make([]source, 0, len(ans.Chunks))
	for _, c := range ans.Chunks {
		sources = append(sources, source{
			ID:      c.ID,
			Page:    c.Metadata.Page,
			Chapter: c.Chapter(),
			Heading: c.Heading(),
		})
	}
	writeJSON(w, http.StatusOK, askResponse{SessionID: sess.ID, Answer: ans, Sources: sources})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"turns":      sess.Turns(),
		"rendered":   sess.Render(),
		"updated_at": sess.UpdatedAt(),
	})
}

// handleSessionReset clears the session's transcript. The id stays valid.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Reset(chi.URLParam(r, "sessionID")); errors.Is(err, assistant.ErrNotFound) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
