package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/jsonrepair"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/store"
)

// handleStructure rebuilds the topic hierarchy for a stored source.
func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	if s.svc.Structurer == nil {
		jsonError(w, "structuring unavailable", http.StatusServiceUnavailable)
		return
	}
	sourceID := chi.URLParam(r, "sourceID")
	out, err := s.svc.Structurer.Structure(r.Context(), sourceID)
	var parseErr *jsonrepair.ParseError
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "source not found", http.StatusNotFound)
	case errors.Is(err, llm.ErrExhausted), errors.As(err, &parseErr):
		jsonError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, config.ErrConfiguration):
		jsonError(w, err.Error(), http.StatusInternalServerError)
	case err != nil:
		s.log.Error("structure failed", "source_id", sourceID, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

const (
	recentCallsDefault = 20
	recentCallsMax     = 500
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.svc.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	body := map[string]any{
		"model":       s.svc.Model,
		"stats":       s.svc.Stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	}
	if s.svc.Calls != nil {
		limit := recentCallsDefault
		if n, err := strconv.Atoi(r.URL.Query().Get("recent")); err == nil && n >= 0 && n <= recentCallsMax {
			limit = n
		}
		if limit > 0 {
			calls, err := s.svc.Calls.RecentCalls(r.Context(), limit)
			if err != nil {
				jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			body["recent_calls"] = calls
		}
	}
	writeJSON(w, http.StatusOK, body)
}
