package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/versioning"
)

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	d := s.runner.Coordinator().Versions()
	if d == nil {
		jsonError(w, "version tracking disabled", http.StatusServiceUnavailable)
		return
	}
	conflicts, err := d.Conflicts(r.Context())
	if err != nil {
		s.log.Error("list conflicts", "error", err)
		jsonError(w, "failed to list conflicts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

// handleFamily returns a family's edition history and its current edition.
// The path segment may be a family key or any filename in the family.
func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	d := s.runner.Coordinator().Versions()
	if d == nil {
		jsonError(w, "version tracking disabled", http.StatusServiceUnavailable)
		return
	}
	name := chi.URLParam(r, "family")

	history, err := d.History(r.Context(), name)
	if err != nil {
		s.log.Error("family history", "family", name, "error", err)
		jsonError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		jsonError(w, "family not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{"family": versioning.Family(name), "history": history}
	current, err := d.Current(r.Context(), name)
	switch {
	case err == nil:
		resp["current"] = current
	case errors.Is(err, store.ErrNotFound):
		resp["current"] = nil
	default:
		s.log.Error("family current", "family", name, "error", err)
		jsonError(w, "failed to load current version", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	d := s.runner.Coordinator().Versions()
	if d == nil {
		jsonError(w, "version tracking disabled", http.StatusServiceUnavailable)
		return
	}
	filename := chi.URLParam(r, "filename")
	if err := d.Retire(r.Context(), filename); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "version not found", http.StatusNotFound)
			return
		}
		s.log.Error("retire version", "filename", filename, "error", err)
		jsonError(w, "failed to retire version", http.StatusInternalServerError)
		return
	}
	s.log.Info("version retired", "filename", filename)
	writeJSON(w, http.StatusOK, map[string]any{"filename": filename, "is_current": false})
}
