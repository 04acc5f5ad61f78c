// Package server provides the HTTP API for Recall.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/config"
	"github.com/hireloop/recall/internal/ingest"
	"github.com/hireloop/recall/internal/keyword"
	"github.com/hireloop/recall/internal/rag"
	"github.com/hireloop/recall/internal/storage"
	"github.com/hireloop/recall/internal/vector"
)

// Server is the HTTP server for the Recall API.
type Server struct {
	engine   *rag.Engine
	ingestor *ingest.Ingestor
	storage  storage.Storage
	keyword  keyword.Index
	index    *vector.FlatIndex
	config   *config.Config
	validate *validator.Validate
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *rag.Engine,
	ing *ingest.Ingestor,
	store storage.Storage,
	kwIdx keyword.Index,
	vecIdx *vector.FlatIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		ingestor: ing,
		storage:  store,
		keyword:  kwIdx,
		index:    vecIdx,
		config:   cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/upload", s.handleUpload)
	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/keyword-search", s.handleKeywordSearch)
	r.Post("/api/v1/filter-candidates", s.handleFilterCandidates)
	r.Get("/api/v1/candidates", s.handleListCandidates)
	r.Get("/api/v1/candidates/{id}", s.handleGetCandidate)
	r.Delete("/api/v1/candidates/{id}", s.handleDeleteCandidate)
	r.Get("/api/v1/candidates/{id}/context", s.handleCandidateContext)
	r.Get("/api/v1/candidates/{id}/full-summary", s.handleCandidateFullSummary)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
