// Package config loads the server configuration from defaults, a YAML file, LITETABLE_*
// environment variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"time"
)

const (
	envPrefix      = "LITETABLE"
	configFileName = "litetable"

	BackendMemory = "memory"
	BackendBadger = "badger"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	CDC           CDCConfig           `mapstructure:"cdc"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Scan          ScanConfig          `mapstructure:"scan"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type GRPCConfig struct {
	Addr             string `mapstructure:"addr"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type CDCConfig struct {
	// Addr is empty to disable the CDC listener.
	Addr       string `mapstructure:"addr"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type StorageConfig struct {
	Backend          string        `mapstructure:"backend"`
	ShardCount       int           `mapstructure:"shard_count"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	MaxSnapshots     int           `mapstructure:"max_snapshots"`
	SyncWrites       bool          `mapstructure:"sync_writes"`
}

type ScanConfig struct {
	// Workers is the scan parallelism; 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

type ObservabilityConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func (c *Config) validate() error {
	var errGrp []error
	if c.DataDir == "" {
		errGrp = append(errGrp, fmt.Errorf("data_dir is required"))
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Backend != BackendBadger {
		errGrp = append(errGrp, fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, c.Storage.Backend))
	}
	if c.Storage.ShardCount < 1 || c.Storage.ShardCount > 50 {
		errGrp = append(errGrp, fmt.Errorf("storage.shard_count must be between 1 and 50"))
	}
	if c.Storage.SnapshotInterval <= 0 {
		errGrp = append(errGrp, fmt.Errorf("storage.snapshot_interval must be positive"))
	}
	if c.Storage.MaxSnapshots < 1 || c.Storage.MaxSnapshots > 50 {
		errGrp = append(errGrp, fmt.Errorf("storage.max_snapshots must be between 1 and 50"))
	}
	if c.Scan.Workers < 0 {
		errGrp = append(errGrp, fmt.Errorf("scan.workers must not be negative"))
	}
	if c.CDC.BufferSize < 1 {
		errGrp = append(errGrp, fmt.Errorf("cdc.buffer_size must be positive"))
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		errGrp = append(errGrp, fmt.Errorf("observability.log_format must be json or text"))
	}
	return errors.Join(errGrp...)
}

// BadgerDir is where the badger backend keeps its files.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", litetable.DefaultDataDir())

	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("grpc.enable_reflection", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("cdc.addr", "127.0.0.1:9443")
	v.SetDefault("cdc.buffer_size", 1000)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.shard_count", 4)
	v.SetDefault("storage.snapshot_interval", time.Minute)
	v.SetDefault("storage.max_snapshots", 5)
	v.SetDefault("storage.sync_writes", false)

	v.SetDefault("scan.workers", 0)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
}

// BindCommonFlags binds the flags every command understands.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file path")
	f.String("data-dir", "", "data directory (default ~/.litetable)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// BindServeFlags binds cobra flags to viper for the serve command.
func BindServeFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("grpc-addr", "", "gRPC listen address")
	f.String("http-addr", "", "HTTP listen address")
	f.String("cdc-addr", "", "CDC listen address")
	f.String("backend", "", "storage backend (memory, badger)")
	f.Bool("reflection", false, "enable gRPC reflection")

	_ = v.BindPFlag("grpc.addr", f.Lookup("grpc-addr"))
	_ = v.BindPFlag("http.addr", f.Lookup("http-addr"))
	_ = v.BindPFlag("cdc.addr", f.Lookup("cdc-addr"))
	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("grpc.enable_reflection", f.Lookup("reflection"))
}

// Load reads config from flags, env, and file, returning the merged and validated Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(litetable.DefaultDataDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK if not explicitly specified
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
