package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/pageshift/internal/config"
	"github.com/dgallion1/pageshift/internal/pipeline"
)

// Server is the HTTP API server for pageshift.
type Server struct {
	router      chi.Router
	transformer *pipeline.Transformer
	log         *slog.Logger
	cfg         config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(t *pipeline.Transformer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		transformer: t,
		log:         log,
		cfg:         cfg,
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
	r.Get("/", s.handleDocs)
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints. With no API key configured the group is
	// open; auth is expected to live at a gateway in that deployment.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/shift", s.handleShift)
		r.Post("/api/move", s.handleMove)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
