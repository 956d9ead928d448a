package cmd

import (
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/app"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/config"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/scan"
	grpcserver "github.com/litetable/litetable-filter/internal/server/grpc"
	httpserver "github.com/litetable/litetable-filter/internal/server/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

const (
	serviceName = "LiteTable Filter"
	stopTimeout = 10 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP servers",
		Long: `Run the table servers until interrupted.

Storage is restored from the data directory before either server accepts a request. Cell
changes are streamed as JSON lines to TCP clients of the CDC address; set it to "" to disable.

Examples:
  litetable-filter serve
  litetable-filter serve --backend badger --grpc-addr :50051 --http-addr :8080
  litetable-filter serve --config ./litetable.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			application, err := initialize(cfg)
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}
	config.BindServeFlags(cmd, v)
	return cmd
}

// initialize wires every dependency of the server. They are started in order and stopped in
// reverse, so storage outlives the servers that read from it. If wiring fails, everything
// opened so far is stopped again.
func initialize(cfg *config.Config) (*app.App, error) {
	var deps []app.Dependency
	fail := func(err error) (*app.App, error) {
		for i := len(deps) - 1; i >= 0; i-- {
			if stopErr := deps[i].Stop(); stopErr != nil {
				err = errors.Join(err, fmt.Errorf("stop %s: %w", deps[i].Name(), stopErr))
			}
		}
		return nil, err
	}

	metrics := observability.NewMetrics()

	var cdc *cdc_emitter.Manager
	if cfg.CDC.Addr != "" {
		var err error
		cdc, err = cdc_emitter.New(&cdc_emitter.Config{
			Address:    cfg.CDC.Addr,
			BufferSize: cfg.CDC.BufferSize,
			Metrics:    metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("cdc: %w", err)
		}
	}

	store, err := openStore(cfg, cdc, metrics)
	if err != nil {
		if cdc != nil {
			deps = append(deps, cdc)
		}
		return fail(fmt.Errorf("storage: %w", err))
	}
	deps = append(deps, store)
	if cdc != nil {
		deps = append(deps, cdc)
	}

	executor, err := scan.New(&scan.Config{
		Workers: cfg.Scan.Workers,
		Metrics: metrics,
	})
	if err != nil {
		return fail(err)
	}

	grpcSrv, err := grpcserver.NewServer(&grpcserver.Config{
		Address:          cfg.GRPC.Addr,
		Store:            store,
		Executor:         executor,
		EnableReflection: cfg.GRPC.EnableReflection,
		Metrics:          metrics,
	})
	if err != nil {
		return fail(err)
	}
	deps = append(deps, grpcSrv)

	httpSrv, err := httpserver.NewServer(&httpserver.Config{
		Address:  cfg.HTTP.Addr,
		Store:    store,
		Executor: executor,
		Metrics:  metrics,
	})
	if err != nil {
		return fail(err)
	}
	deps = append(deps, httpSrv)

	application, err := app.CreateApp(&app.Config{
		ServiceName: serviceName,
		StopTimeout: stopTimeout,
	}, deps...)
	if err != nil {
		return fail(err)
	}
	return application, nil
}
