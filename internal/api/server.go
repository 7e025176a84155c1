// Package api serves word lookups and nearest-neighbor queries over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/wordvec/internal/embedding"
)

const (
	// DefaultTopN is used when a request has no top_n parameter.
	DefaultTopN = 5

	// MaxTopN bounds top_n to keep responses small.
	MaxTopN = 1000

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// Server is the HTTP front end for an embedding table. The table may be
// installed after the server starts; until then data endpoints return 503.
type Server struct {
	table          atomic.Pointer[embedding.Table]
	logger         *slog.Logger
	limiter        *rate.Limiter
	allowedOrigins map[string]bool
	defaultTopN    int
	started        time.Time
	memStats       func() (rss uint64, cpus int)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRateLimit enables a token-bucket limiter shared by all clients.
// A non-positive limit disables rate limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAllowedOrigins sets the origins allowed by CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = make(map[string]bool, len(origins))
		for _, o := range origins {
			s.allowedOrigins[o] = true
		}
	}
}

// WithDefaultTopN sets top_n for requests that omit it.
func WithDefaultTopN(n int) Option {
	return func(s *Server) {
		if n > 0 && n <= MaxTopN {
			s.defaultTopN = n
		}
	}
}

// NewServer creates a server. table may be nil and installed later with
// SetTable.
func NewServer(table *embedding.Table, opts ...Option) *Server {
	s := &Server{
		logger:         slog.Default(),
		allowedOrigins: map[string]bool{},
		defaultTopN:    DefaultTopN,
		started:        time.Now(),
		memStats:       processStats,
	}
	if table != nil {
		s.table.Store(table)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTable installs or replaces the table served.
func (s *Server) SetTable(t *embedding.Table) {
	s.table.Store(t)
}

// ready returns the table when it is loaded and non-empty.
func (s *Server) ready() (*embedding.Table, bool) {
	t := s.table.Load()
	if t == nil || t.Len() == 0 {
		return nil, false
	}
	return t, true
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /embedding/{word}", s.handleEmbedding)
	mux.HandleFunc("GET /embedding/{$}", s.handleEmbedding)
	mux.HandleFunc("GET /nearest-neighbors/{word}", s.handleNeighbors)
	mux.HandleFunc("GET /nearest-neighbors/{$}", s.handleNeighbors)
	mux.HandleFunc("GET /similarity", s.handleSimilarity)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.recoverPanic(h)
	h = s.logRequests(h)
	h = requestID(h)
	return h
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
