// Package server provides the HTTP API for groundchat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/chat"
	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/models"
)

// ChatService answers chat requests.
type ChatService interface {
	Handle(ctx context.Context, req *models.ChatRequest, sink chat.Sink) (*chat.Reply, error)
}

// HistoryReader exposes stored threads.
type HistoryReader interface {
	Threads(ctx context.Context, userID string) ([]models.Thread, error)
	LoadWindow(ctx context.Context, key models.ThreadKey, maxTurns int) []models.Turn
}

// StatsSource reports stored thread counts.
type StatsSource interface {
	CountThreads(ctx context.Context) (int64, error)
}

// DocCounter reports the size of the local document index.
type DocCounter interface {
	Count() (uint64, error)
}

// Server is the HTTP server for the groundchat API.
type Server struct {
	chat     ChatService
	history  HistoryReader
	stats    StatsSource
	docs     DocCounter
	gatherer prometheus.Gatherer
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. docs may be nil when the
// retrieval backend is remote; gatherer may be nil to serve the default registry.
func NewServer(
	svc ChatService,
	hist HistoryReader,
	stats StatsSource,
	docs DocCounter,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:     svc,
		history:  hist,
		stats:    stats,
		docs:     docs,
		gatherer: gatherer,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Streaming answers are not bounded by the request timeout.
	r.Post("/api/v1/chat", s.handleChat)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))
		r.Get("/api/v1/threads", s.handleListThreads)
		r.Get("/api/v1/threads/{id}/turns", s.handleListTurns)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
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
