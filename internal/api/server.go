package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/manualqa/internal/assistant"
	"github.com/dgallion1/manualqa/internal/llm"
	"github.com/dgallion1/manualqa/internal/pipeline"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

// Asker answers a question within a session.
type Asker interface {
	Ask(ctx context.Context, s *assistant.Session, req assistant.AskRequest) (*assistant.Answer, error)
}

// Ingester queues manual uploads.
type Ingester interface {
	Enqueue(filename string, data []byte) (*pipeline.Job, error)
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// IndexStatter reports what the vector index holds.
type IndexStatter interface {
	Stats(ctx context.Context) (vectorstore.Stats, error)
}

// LLMStatter exposes generation latency stats.
type LLMStatter interface {
	Model() string
	Stats() *llm.Stats
}

// Deps are the components the HTTP API serves. LLM may be nil.
type Deps struct {
	Assistant Asker
	Sessions  *assistant.SessionStore
	Ingest    Ingester
	Index     IndexStatter
	LLM       LLMStatter
}

// Options tunes the HTTP layer.
type Options struct {
	APIKey         string // Bearer token; auth is off when empty
	MaxUploadBytes int64
}

// Server is the HTTP API server for manual Q&A.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	opts   Options
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, opts Options, log *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 100 << 20
	}
	s := &Server{
		deps: deps,
		log:  log,
		opts: opts,
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

	r.Group(func(r chi.Router) {
		if s.opts.APIKey != "" {
			r.Use(AuthMiddleware(s.opts.APIKey, s.log))
		}

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/api/ask", s.handleAsk)
		r.Get("/api/sessions/{sessionID}/history", s.handleSessionHistory)
		r.Delete("/api/sessions/{sessionID}", s.handleSessionReset)

		r.Get("/api/stats/llm", s.handleLLMStats)
		r.Get("/api/index/stats", s.handleIndexStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
