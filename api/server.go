// Package api exposes export pipeline over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"webepub/config"
	"webepub/convert"
)

// Server is HTTP front end of the exporter.
type Server struct {
	router   chi.Router
	exporter *convert.Exporter
	cfg      config.ServerConfig
	log      *zap.Logger
}

// NewServer creates and configures routes. Exporter is shared by all
// requests, it keeps no per request state.
func NewServer(ex *convert.Exporter, cfg config.ServerConfig, log *zap.Logger) *Server {
	s := &Server{
		exporter: ex,
		cfg:      cfg,
		log:      log.Named("api"),
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

	r.Get("/health", s.handleHealth)
	r.Post("/api/export", s.handleExport)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
