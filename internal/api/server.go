package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/regingest/internal/config"
	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/pipeline"
)

// Server is the HTTP API server for regingest.
type Server struct {
	router chi.Router
	runner *pipeline.Runner
	stats  *indexer.Stats
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(runner *pipeline.Runner, stats *indexer.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		runner: runner,
		stats:  stats,
		log:    log,
		cfg:    cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/runs", s.handleCreateRun)
		r.Get("/api/runs/{runID}", s.handleGetRun)
		r.Get("/api/runs/{runID}/report.txt", s.handleRunReport)
		r.Delete("/api/runs/{runID}", s.handleCancelRun)

		r.Get("/api/versions/conflicts", s.handleConflicts)
		r.Get("/api/versions/families/{family}", s.handleFamily)
		r.Post("/api/versions/files/{filename}/retire", s.handleRetire)

		r.Get("/api/stats/indexer", s.handleIndexerStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
