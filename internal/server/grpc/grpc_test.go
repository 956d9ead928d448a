package grpc

import (
	"context"
	"errors"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"net"
	"testing"
	"time"
)

func newExecutor(t *testing.T) *scan.Executor {
	t.Helper()
	e, err := scan.New(&scan.Config{Workers: 2})
	require.NoError(t, err)
	return e
}

// dialBufconn serves cfg in-process and returns a connected client.
func dialBufconn(t *testing.T, cfg *Config) *grpc2.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, _ := newGRPCServer(cfg)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc2.NewClient("passthrough:///bufnet",
		grpc2.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc2.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	tests := map[string]struct {
		cfg   *Config
		error error
	}{
		"invalid config": {
			cfg:   &Config{},
			error: errors.New("address required\nstore required\nexecutor required"),
		},
		"valid config": {
			cfg: &Config{
				Address:  "127.0.0.1:0",
				Store:    storage.NewMockRowStore(ctrl),
				Executor: newExecutor(t),
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			got, err := NewServer(test.cfg)
			if test.error != nil {
				req.Error(err)
				req.Nil(got)
				req.Equal(test.error.Error(), err.Error())
				return
			}

			req.NoError(err)
			req.NotNil(got)
			req.NotContains(got.Addr(), ":0")
			req.NoError(got.listener.Close())
		})
	}
}

func TestServer_Name(t *testing.T) {
	t.Parallel()
	s := &Server{}
	require.Equal(t, "gRPC Server", s.Name())
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	t.Run("successful start", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		mockServer := NewMockgrpcServer(ctrl)
		ml := &mockListener{}

		mockServer.EXPECT().
			Serve(ml).
			DoAndReturn(func(net.Listener) error {
				// Simulate blocking serve
				time.Sleep(600 * time.Millisecond)
				return nil
			})

		s := &Server{
			address:  "127.0.0.1:12345",
			server:   mockServer,
			listener: ml,
		}

		require.NoError(t, s.Start())
		// let the simulated serve return before the controller finishes
		time.Sleep(200 * time.Millisecond)
	})

	t.Run("serve error on start", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		mockServer := NewMockgrpcServer(ctrl)
		ml := &mockListener{}

		mockServer.EXPECT().
			Serve(ml).
			Return(errors.New("bind error"))

		s := &Server{
			address:  "127.0.0.1:12345",
			server:   mockServer,
			listener: ml,
		}

		err := s.Start()
		require.Error(t, err)
		require.Contains(t, err.Error(), "bind error")
	})
}

func TestServer_Stop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mockServer := NewMockgrpcServer(ctrl)
	mockServer.EXPECT().GracefulStop().Times(1)

	s := &Server{
		server: mockServer,
	}

	require.NoError(t, s.Stop())
}

func TestServer_Stop_releasesUnstartedListener(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctrl := gomock.NewController(t)

	s, err := NewServer(&Config{
		Address:  "127.0.0.1:0",
		Store:    storage.NewMockRowStore(ctrl),
		Executor: newExecutor(t),
	})
	req.NoError(err)
	req.NoError(s.Stop())

	lis, err := net.Listen("tcp", s.Addr())
	req.NoError(err, "address must be free after Stop")
	req.NoError(lis.Close())
}

func TestGRPCServer_health(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctrl := gomock.NewController(t)

	conn := dialBufconn(t, &Config{
		Store:    storage.NewMockRowStore(ctrl),
		Executor: newExecutor(t),
		Metrics:  observability.NewMetrics(),
	})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: serviceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

type mockListener struct {
	net.Listener
}

func (m *mockListener) Accept() (net.Conn, error) { return nil, nil }
func (m *mockListener) Close() error              { return nil }
func (m *mockListener) Addr() net.Addr            { return &net.TCPAddr{Port: 12345} }
