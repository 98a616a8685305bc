package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/pipeline"
	"github.com/dgallion1/edugest/internal/store"
)

// CorrectionStore records human classification fixes and serves them back
// as classifier examples.
type CorrectionStore interface {
	classify.CorrectionSource
	AddCorrection(ctx context.Context, c *store.Correction) error
}

// CallLog lists recent completion attempts.
type CallLog interface {
	RecentCalls(ctx context.Context, limit int) ([]store.AICall, error)
}

// Services are the components the handlers call outside the job queue.
type Services struct {
	Classifier  *classify.Classifier
	Configs     pipeline.ConfigResolver
	Corrections CorrectionStore
	Structurer  *pipeline.Structurer
	Stats       *llm.LLMStats
	Calls       CallLog
	Model       string
}

// Server is the HTTP API server for edugest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	svc          Services
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, svc Services, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		svc:          svc,
		log:          log,
		cfg:          cfg,
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

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ingest/{jobID}/result", s.handleIngestResult)

		r.Post("/api/classify", s.handleClassify)
		r.Post("/api/corrections", s.handleCorrection)

		r.Post("/api/sources/{sourceID}/structure", s.handleStructure)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
