package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/regingest/internal/parser"
	"github.com/dgallion1/regingest/internal/pipeline"
)

const maxRunRequestBytes = 1 << 20

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunRequestBytes)

	var req pipeline.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Directory = strings.TrimSpace(req.Directory)

	switch {
	case req.Directory == "" && len(req.Paths) == 0:
		jsonError(w, "directory or paths is required", http.StatusBadRequest)
		return
	case req.Directory != "" && len(req.Paths) > 0:
		jsonError(w, "directory and paths are mutually exclusive", http.StatusBadRequest)
		return
	}
	for _, p := range req.Paths {
		if strings.TrimSpace(p) == "" {
			jsonError(w, "paths must not contain empty entries", http.StatusBadRequest)
			return
		}
		if !parser.IsSupportedExtension(p) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(p)), http.StatusBadRequest)
			return
		}
	}

	run := pipeline.NewRun(req)
	if err := s.runner.Submit(run); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("run submitted", "run_id", run.ID, "directory", req.Directory, "paths", len(req.Paths))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     run.ID,
		"state":      run.Snapshot().State,
		"status_url": fmt.Sprintf("/api/runs/%s", run.ID),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	rep, ok := run.Report()
	if !ok {
		jsonError(w, fmt.Sprintf("run is %s, no report yet", run.Snapshot().State), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(pipeline.TextReport(rep)))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	if !run.Cancel() {
		jsonError(w, fmt.Sprintf("run already %s", run.Snapshot().State), http.StatusConflict)
		return
	}
	s.log.Info("run cancel requested", "run_id", run.ID)
	writeJSON(w, http.StatusAccepted, run.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
