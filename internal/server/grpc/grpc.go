// Package grpc serves the table service. Requests and responses are plain Go structs carried
// by a JSON codec, so clients must call with the "json" content subtype; Client does that.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"net"
	"time"
)

//go:generate mockgen -destination=./grpc_mock.go -package=grpc -source=grpc.go

type grpcServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
}

// Server implements the app.Dependency interface for a gRPC server
type Server struct {
	address  string
	server   grpcServer
	health   *health.Server
	listener net.Listener
}

type Config struct {
	// Address is host:port; port 0 picks a free one.
	Address          string
	Store            storage.RowStore
	Executor         *scan.Executor
	EnableReflection bool
	Metrics          *observability.Metrics
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

// NewServer creates a new gRPC server instance
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	srv, healthSrv := newGRPCServer(cfg)

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s: %w", cfg.Address, err)
	}

	return &Server{
		address:  lis.Addr().String(),
		server:   srv,
		health:   healthSrv,
		listener: lis,
	}, nil
}

func newGRPCServer(cfg *Config) (*grpc2.Server, *health.Server) {
	srv := grpc2.NewServer(grpc2.ChainUnaryInterceptor(unaryInterceptor(cfg.Metrics)))

	RegisterTableServiceServer(srv, &table{
		store:    cfg.Store,
		executor: cfg.Executor,
	})

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	if cfg.EnableReflection {
		reflection.Register(srv)
	}
	return srv, healthSrv
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.address
}

func (s *Server) Start() error {
	log.Info().Msgf("gRPC server listening at %s", s.address)

	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			errCh <- err
			log.Error().Err(err).Msg("gRPC server failed")
			return
		}
		errCh <- nil
	}()

	// Block briefly for error or nil return
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		// Assume server started successfully
		return nil
	}
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping gRPC server")
	if s.health != nil {
		s.health.Shutdown()
	}
	s.server.GracefulStop()

	// Serve closes the listener; a server that never started still owns it.
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}
	return nil
}

func (s *Server) Name() string {
	return "gRPC Server"
}

// unaryInterceptor traces every call and records its outcome.
func unaryInterceptor(m *observability.Metrics) grpc2.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc2.UnaryServerInfo,
		handler grpc2.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, span := observability.StartSpan(ctx, info.FullMethod,
			attribute.String("rpc.system", "grpc"))

		resp, err := handler(ctx, req)
		observability.EndSpan(span, err)

		if m != nil {
			code := status.Code(err).String()
			m.OperationTotal.WithLabelValues(info.FullMethod, code).Inc()
			m.OperationDuration.WithLabelValues(info.FullMethod, code).
				Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}
