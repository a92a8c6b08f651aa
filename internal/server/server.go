// Package server provides the HTTP API for taxqa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/store"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// maxRequestBytes bounds the chat request body.
const maxRequestBytes = 1 << 20

// Answerer answers one question with a grounded, cited response.
type Answerer interface {
	Answer(ctx context.Context, message string) (*models.ChatResponse, error)
}

// Server is the HTTP server for the taxqa API.
type Server struct {
	answerer Answerer
	store    store.ChunkStore
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(answerer Answerer, s store.ChunkStore, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		answerer: answerer,
		store:    s,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Handler returns the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
