// Package http serves the table over JSON/HTTP with a chi router.
package http

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"net"
	"net/http"
	"time"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeText        = "text/plain; charset=utf-8"
	defaultShutdownTimeout = 5 * time.Second
	maxBodyBytes           = 8 << 20
)

type Config struct {
	// Address is host:port; port 0 picks a free one.
	Address  string
	Store    storage.RowStore
	Executor *scan.Executor
	Metrics  *observability.Metrics
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Store == nil {
		errGrp = append(errGrp, fmt.Errorf("store required"))
	}
	if c.Executor == nil {
		errGrp = append(errGrp, fmt.Errorf("executor required"))
	}
	return errors.Join(errGrp...)
}

// Server implements the app.Dependency interface for the HTTP API.
type Server struct {
	store      storage.RowStore
	executor   *scan.Executor
	metrics    *observability.Metrics
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates the server and binds its listener.
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := newServer(cfg)

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s: %w", cfg.Address, err)
	}
	s.listener = lis
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}
	return s, nil
}

func newServer(cfg *Config) *Server {
	return &Server{
		store:    cfg.Store,
		executor: cfg.Executor,
		metrics:  cfg.Metrics,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/families", s.handleListFamilies)
		r.Post("/families", s.handleCreateFamilies)
		r.Post("/rows:mutate", s.handleMutate)
		r.Post("/rows:scan", s.handleScan)
	})

	return r
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().Msgf("HTTP server listening at %s", s.Addr())
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	// Shutdown only closes listeners passed to Serve.
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

func (s *Server) Name() string {
	return "HTTP Server"
}

// instrument traces the request and records it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := observability.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		var err error
		if ww.Status() >= http.StatusInternalServerError {
			err = fmt.Errorf("status %d", ww.Status())
		}
		observability.EndSpan(span, err)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			code := fmt.Sprint(ww.Status())
			s.metrics.OperationTotal.WithLabelValues(route, code).Inc()
			s.metrics.OperationDuration.WithLabelValues(route, code).Observe(time.Since(start).Seconds())
		}
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}
