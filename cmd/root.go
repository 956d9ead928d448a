// Package cmd is the litetable-filter command line.
package cmd

import (
	"context"
	"fmt"
	"github.com/litetable/litetable-filter/internal/config"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the root command with the process arguments.
func Execute() error {
	return newRootCmd(viper.New()).ExecuteContext(context.Background())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "litetable-filter",
		Short: "Row filters over a LiteTable",
		Long: `litetable-filter stores rows of versioned cells and scans them through
Bigtable-style row filters.

Server commands:
  litetable-filter serve                     Run the gRPC and HTTP servers

Data commands:
  litetable-filter seed                      Write the phone dataset
  litetable-filter scan --filter f.yaml      Scan rows through a filter
  litetable-filter filters                   List the example filters`,
		SilenceUsage: true,
	}
	config.BindCommonFlags(rootCmd, v)

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newSeedCmd(v))
	rootCmd.AddCommand(newScanCmd(v))
	rootCmd.AddCommand(newFiltersCmd())
	return rootCmd
}

// loadConfig merges the config for cmd and sets up logging from it.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	configFile, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.SetupLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cmd.ErrOrStderr())
	return cfg, nil
}
