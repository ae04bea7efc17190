// Package server exposes the budget query pipeline over HTTP and, optionally, as MCP tools.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// MountPrefix is the path prefix the API is also served under.
const MountPrefix = "/BudgetQuery"

type Server struct {
	log       *slog.Logger
	cfg       Config
	router    chi.Router
	httpSrv   *http.Server
	downloads *downloads
	ready     atomic.Bool
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate server config: %w", err)
	}

	s := &Server{
		log:       cfg.Logger,
		cfg:       cfg,
		downloads: newDownloads(cfg.DownloadTTL),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.readyzHandler)

	s.routes(r)
	r.Route(MountPrefix, s.routes)

	if cfg.EnableMCP {
		mcpServer, err := s.newMCPServer()
		if err != nil {
			return nil, err
		}
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
			return mcpServer
		}, &mcp.StreamableHTTPOptions{
			Stateless: true,
		}))
	}
	s.router = r

	s.httpSrv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return s, nil
}

func (s *Server) routes(r chi.Router) {
	r.Post("/api/interpret", s.handleInterpret)
	r.Post("/api/execute", s.handleExecute)
	r.Post("/api/observations", s.handleObservations)
	r.Post("/api/download", s.handleDownload)
	r.Get("/api/download/{token}", s.handleDownloadToken)
	r.Post("/api/feedback", s.handleFeedback)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Listener == nil {
		return errors.New("listener is required")
	}

	s.downloads.start()
	defer s.downloads.stop()

	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(s.cfg.Listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()
	s.ready.Store(true)
	s.log.Info("server: http listening", "address", s.cfg.Listener.Addr(), "mcp", s.cfg.EnableMCP)

	select {
	case <-ctx.Done():
		s.ready.Store(false)
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		s.ready.Store(false)
		s.log.Error("server: server error causing shutdown", "error", err)
		return err
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.log.Debug("readyz: server not ready")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("server not ready\n")); err != nil {
			s.log.Error("failed to write readyz response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}
