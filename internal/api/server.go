// Package api exposes the document ingestion and retrieval HTTP surface.
// Uploads are accepted, spooled to disk, and handed to the extraction
// runner; results are read back from the store.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scholarlab/paperparse/internal/pipeline"
	"github.com/scholarlab/paperparse/internal/store"
)

// Config holds the server's operational parameters.
type Config struct {
	// DataDir is where uploaded PDFs are spooled.
	DataDir string

	// MaxUploadBytes bounds the accepted file size.
	MaxUploadBytes int64

	// APIKey, when non-empty, gates the /api routes behind bearer auth.
	APIKey string
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	runner *pipeline.Runner
	st     *store.Store
	log    *slog.Logger
	cfg    Config
}

// NewServer creates and configures the server.
func NewServer(runner *pipeline.Runner, st *store.Store, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{runner: runner, st: st, log: log, cfg: cfg}
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

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/documents", s.handleList)
		r.Get("/api/documents/{docID}", s.handleGet)
		r.Get("/api/documents/{docID}/outcome", s.handleOutcome)
		r.Post("/api/documents/{docID}/reextract", s.handleReextract)
		r.Delete("/api/documents/{docID}", s.handleDelete)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
