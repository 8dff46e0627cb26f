// Package api exposes the infill pipeline over HTTP.
//
// Routes:
//
//	POST /v1/infill   multipart form with "image" and "mask" files → filled image
//	GET  /healthz     liveness probe
//	GET  /version     build information
//	GET  /stats       request, cache and infill counters (when enabled)
//
// Option fields of the infill form mirror [pipeline.Options]: patch_size,
// iterations, pyramid_floor, search_cap, seed, mask_threshold, mask_invert,
// mask_from_alpha and format. Errors are returned as JSON objects with a
// code and a message.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/illumorae/patchfill/pkg/observability"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// Default server limits.
const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultMaxUploadBytes = 32 << 20
	DefaultRequestTimeout = 2 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// MaxUploadBytes bounds the size of a request body.
	MaxUploadBytes int64

	// RequestTimeout bounds the time spent on one request.
	RequestTimeout time.Duration

	// Defaults are applied to option fields the request leaves empty.
	Defaults pipeline.Options

	// Stats, when set, is served on GET /stats.
	Stats *observability.Counters
}

// Server serves infill requests through a pipeline runner.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	cfg    Config
}

// NewServer creates a server. Zero config fields select the defaults.
func NewServer(runner *pipeline.Runner, logger *log.Logger, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = runner.Logger
	}
	return &Server{runner: runner, logger: logger, cfg: cfg}
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.cfg.Stats != nil {
		r.Get("/stats", s.handleStats)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/infill", s.handleInfill)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errNotFound(r.URL.Path))
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}
