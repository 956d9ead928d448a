package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	req.NoError(err)
	req.Equal(":50051", cfg.GRPC.Addr)
	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(BackendMemory, cfg.Storage.Backend)
	req.Equal(4, cfg.Storage.ShardCount)
	req.Equal(time.Minute, cfg.Storage.SnapshotInterval)
	req.Equal("info", cfg.Observability.LogLevel)
	req.NotEmpty(cfg.DataDir)
	req.Equal(filepath.Join(cfg.DataDir, "badger"), cfg.BadgerDir())
}

func TestLoad_file(t *testing.T) {
	req := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "litetable.yaml")
	req.NoError(os.WriteFile(path, []byte(`
data_dir: /tmp/litetable-test
grpc:
  addr: 127.0.0.1:6000
  enable_reflection: true
storage:
  backend: badger
  snapshot_interval: 30s
scan:
  workers: 3
`), 0644))

	cfg, err := Load(viper.New(), path)
	req.NoError(err)
	req.Equal("/tmp/litetable-test", cfg.DataDir)
	req.Equal("127.0.0.1:6000", cfg.GRPC.Addr)
	req.True(cfg.GRPC.EnableReflection)
	req.Equal(BackendBadger, cfg.Storage.Backend)
	req.Equal(30*time.Second, cfg.Storage.SnapshotInterval)
	req.Equal(3, cfg.Scan.Workers)
}

func TestLoad_envAndFlags(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("LITETABLE_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("LITETABLE_STORAGE_SHARD_COUNT", "8")

	v := viper.New()
	cmd := &cobra.Command{Use: "serve"}
	BindCommonFlags(cmd, v)
	BindServeFlags(cmd, v)
	req.NoError(cmd.ParseFlags([]string{"--backend", "badger", "--log-level", "debug"}))

	cfg, err := Load(v, "")
	req.NoError(err)
	req.Equal("127.0.0.1:7000", cfg.HTTP.Addr)
	req.Equal(8, cfg.Storage.ShardCount)
	req.Equal(BackendBadger, cfg.Storage.Backend)
	req.Equal("debug", cfg.Observability.LogLevel)
}

func TestLoad_errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		missing bool
	}{
		"explicit file missing": {
			missing: true,
		},
		"unknown backend": {
			content: "storage:\n  backend: postgres\n",
		},
		"bad shard count": {
			content: "storage:\n  shard_count: 0\n",
		},
		"bad log format": {
			content: "observability:\n  log_format: xml\n",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			path := filepath.Join(t.TempDir(), "litetable.yaml")
			if !tc.missing {
				req.NoError(os.WriteFile(path, []byte(tc.content), 0644))
			}

			cfg, err := Load(viper.New(), path)
			req.Error(err)
			req.Nil(cfg)
		})
	}
}
