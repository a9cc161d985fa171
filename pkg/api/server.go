package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yourusername/bgserver/pkg/session"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host            string        // Host to bind to (default "localhost")
	Port            int           // Port to listen on (default 8080)
	ReadTimeout     time.Duration // Read timeout (default 30s)
	WriteTimeout    time.Duration // Write timeout, 0 for none; streams need none (default 0)
	IdleTimeout     time.Duration // Idle timeout (default 60s)
	MaxRequests     int           // Max concurrent short requests (default 100)
	MaxStreams      int           // Max concurrent SSE/WebSocket streams (default 256)
	ShutdownTimeout time.Duration // Graceful shutdown limit (default 10s)
	PruneInterval   time.Duration // How often finished idle matches are dropped, 0 = never
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxRequests:     100,
		MaxStreams:      256,
		ShutdownTimeout: 10 * time.Second,
		PruneInterval:   5 * time.Minute,
	}
}

// Server is the HTTP API server.
type Server struct {
	config   ServerConfig
	registry *session.Registry
	handlers *Handlers
	server   *http.Server
	pool     *WorkerPool
	logger   *log.Logger
}

// NewServer creates a new API server. A nil opts.Pool is replaced by one
// sized from config.
func NewServer(registry *session.Registry, config ServerConfig, opts HandlerConfig) *Server {
	if opts.Pool == nil {
		opts.Pool = NewWorkerPool(PoolConfig{
			MaxRequests: config.MaxRequests,
			MaxStreams:  config.MaxStreams,
		})
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		config:   config,
		registry: registry,
		handlers: NewHandlers(registry, opts),
		pool:     opts.Pool,
		logger:   logger,
	}
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Pool returns the worker pool for monitoring.
func (s *Server) Pool() *WorkerPool {
	return s.pool
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs all requests.
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	h := s.handlers
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("POST /api/matches", h.CreateMatch)
	mux.HandleFunc("GET /api/matches", h.ListMatches)
	mux.HandleFunc("GET /api/matches/{id}", h.GetMatch)
	mux.HandleFunc("DELETE /api/matches/{id}", h.DeleteMatch)
	mux.HandleFunc("POST /api/matches/{id}/actions", h.SubmitAction)
	mux.HandleFunc("GET /api/matches/{id}/legal", h.Legal)
	mux.HandleFunc("GET /api/matches/{id}/export", h.Export)
	mux.HandleFunc("GET /api/matches/{id}/transcript", h.Transcript)
	mux.HandleFunc("GET /api/matches/{id}/events", h.Events)
	mux.HandleFunc("GET /api/matches/{id}/ws", h.WebSocket)

	mux.HandleFunc("GET /api/history", h.HistoryList)
	mux.HandleFunc("GET /api/history/{id}", h.HistoryMatch)

	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Shutdown stops accepting requests, then stops bots and closes every
// session so open streams end.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.server.Shutdown(ctx) }()
	// Streams never go idle on their own; closing the sessions ends them.
	s.handlers.Close()
	s.registry.Close()
	return <-done
}

// prune drops finished matches nobody watches until ctx ends.
func (s *Server) prune(ctx context.Context) {
	if s.config.PruneInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.PruneCompleted(); n > 0 {
				s.logger.Debug("pruned finished matches", "count", n)
			}
		}
	}
}

// ListenAndServeWithGracefulShutdown serves until ctx ends or SIGINT/SIGTERM
// arrives, then shuts down within ShutdownTimeout.
func (s *Server) ListenAndServeWithGracefulShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go s.prune(ctx)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
