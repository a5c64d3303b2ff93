// Package web provides the HTTP server and routing
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ytgrab/internal/config"
	"ytgrab/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handlers *handlers.Handlers
	logger   *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, h *handlers.Handlers) *Server {
	mux := http.NewServeMux()

	// Routes
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /api/metadata", h.Metadata)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /download", h.DownloadToken)
	mux.HandleFunc("GET /stream/{id}", h.Stream)
	mux.HandleFunc("GET /audio/{id}", h.Audio)
	mux.HandleFunc("GET /video/{id}", h.Video)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /test/{id}", h.Test)

	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize)
	handler := corsMiddleware(rateLimitMiddleware(limiter, mux))

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No write timeout: streaming a long video leg can legitimately
		// take minutes.
	}

	return &Server{
		server:   server,
		handlers: h,
		logger:   slog.Default(),
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
