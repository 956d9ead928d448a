// Package storage is the sharded in-memory row store. Rows are spread over shards by an FNV-1a
// hash of the row key, each shard with its own lock, so writes to different rows rarely
// contend. Range reads have no shard affinity and fan out over every shard.
//
// Durability comes from two places: every batch is appended to the write-ahead log before it
// is applied, and the whole table is periodically written as a snapshot to an object store
// bucket, after which the log is truncated. Start restores the latest snapshot and replays the
// log on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/wal"
	"github.com/rs/zerolog/log"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	snapshotDir        = ".snapshots"
	dataFamilyLockFile = "families.config.json"

	defaultShardCount       = 2
	defaultMaxSnapshots     = 5
	defaultSnapshotInterval = time.Minute
)

// writeAheadLog is the subset of the WAL the store depends on.
type writeAheadLog interface {
	Apply(e *wal.Entry) error
	Load(fn func(*wal.Entry) error) (int, error)
	Truncate() error
}

// cdcEmitter receives one event per written cell.
type cdcEmitter interface {
	Emit(params *cdc_emitter.CDCParams)
}

// Manager is the sharded row store.
type Manager struct {
	rootDir string
	mutex   sync.RWMutex

	allowedFamilies []string
	familiesFile    string

	// writeMu is held shared by writers and exclusively while a snapshot is taken, so a
	// snapshot and the WAL truncation that follows it see the same writes.
	writeMu          sync.RWMutex
	changedRows      map[string]struct{}
	bucket           objstore.Bucket
	ownsBucket       bool
	snapshotInterval time.Duration
	maxSnapshots     int
	lastSnapshotTime time.Time

	wal     writeAheadLog
	cdc     cdcEmitter
	metrics *observability.Metrics

	procCtx   context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	started   atomic.Bool

	shardCount int
	shardMap   []*shard
}

type Config struct {
	// RootDir holds the family configuration and, without a Bucket, the snapshots.
	RootDir          string
	ShardCount       int
	SnapshotInterval time.Duration
	MaxSnapshots     int

	// Bucket receives snapshots. Optional.
	Bucket objstore.Bucket
	// WAL and CDC are optional.
	WAL     writeAheadLog
	CDC     cdcEmitter
	Metrics *observability.Metrics
}

func (c *Config) validate() error {
	var errGrp []error
	if c.RootDir == "" {
		errGrp = append(errGrp, fmt.Errorf("data directory is required"))
	}
	if c.SnapshotInterval < 0 {
		errGrp = append(errGrp, fmt.Errorf("snapshot interval must not be negative"))
	}
	if c.MaxSnapshots < 0 || c.MaxSnapshots > 50 {
		errGrp = append(errGrp, fmt.Errorf("max snapshot limit must be between 1 and 50"))
	}
	if c.ShardCount < 0 || c.ShardCount > 50 {
		errGrp = append(errGrp, fmt.Errorf("shard count must be between 1 and 50"))
	}
	return errors.Join(errGrp...)
}

// New creates a new sharded storage manager
func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	bucket, ownsBucket := cfg.Bucket, false
	if bucket == nil {
		var err error
		bucket, err = filesystem.NewBucket(filepath.Join(cfg.RootDir, snapshotDir))
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot bucket: %w", err)
		}
		ownsBucket = true
	}

	shardCount := cfg.ShardCount
	if shardCount == 0 {
		shardCount = defaultShardCount
	}
	interval := cfg.SnapshotInterval
	if interval == 0 {
		interval = defaultSnapshotInterval
	}
	maxSnapshots := cfg.MaxSnapshots
	if maxSnapshots == 0 {
		maxSnapshots = defaultMaxSnapshots
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		rootDir:          cfg.RootDir,
		allowedFamilies:  make([]string, 0),
		familiesFile:     filepath.Join(cfg.RootDir, dataFamilyLockFile),
		changedRows:      make(map[string]struct{}),
		bucket:           bucket,
		ownsBucket:       ownsBucket,
		snapshotInterval: interval,
		maxSnapshots:     maxSnapshots,
		wal:              cfg.WAL,
		cdc:              cfg.CDC,
		metrics:          cfg.Metrics,
		procCtx:          ctx,
		ctxCancel:        cancel,
		done:             make(chan struct{}),
		shardCount:       shardCount,
		shardMap:         initializeDataShards(shardCount),
	}

	// load any existing column families
	if err := m.loadAllowedFamilies(); err != nil {
		return nil, fmt.Errorf("failed to load allowed families: %w", err)
	}

	return m, nil
}

// Start restores the latest snapshot, replays the WAL and starts the periodic snapshot loop.
func (m *Manager) Start() error {
	if err := m.Restore(m.procCtx); err != nil {
		return err
	}

	m.started.Store(true)
	go m.snapshotLoop()
	return nil
}

// Stop is a blocking operation that flushes any remaining data to a snapshot before
// allowing the process to shut down.
func (m *Manager) Stop() error {
	if m.ctxCancel != nil {
		m.ctxCancel()
	}

	if m.started.Load() {
		select {
		case <-m.done:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("snapshot loop did not stop in time")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := m.Snapshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final snapshot: %w", err))
	}
	if m.ownsBucket {
		if err := m.bucket.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bucket: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Name() string {
	return "Shard Storage"
}

func (m *Manager) snapshotLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.procCtx.Done():
			return
		case <-ticker.C:
			if err := m.Snapshot(m.procCtx); err != nil {
				log.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}

// shard is a manager for a single shard of in-memory rows.
type shard struct {
	rows  map[string]rowData
	mutex sync.RWMutex
}

// rowData maps family -> qualifier -> versions, newest first.
type rowData map[string]map[string][]version

type version struct {
	Timestamp int64  `json:"timestamp"`
	Value     []byte `json:"value"`
}

func initializeDataShards(count int) []*shard {
	shards := make([]*shard, count)
	for i := range shards {
		shards[i] = &shard{rows: make(map[string]rowData)}
	}
	return shards
}

// getShardIndex determines which shard a particular row key belongs to.
func (m *Manager) getShardIndex(rowKey string) int {
	if m.shardCount <= 0 {
		return 0
	}

	// Use FNV-1a hash algorithm for distributing keys
	h := fnv.New32a()
	_, _ = h.Write([]byte(rowKey))
	hash := h.Sum32()

	return int(hash % uint32(m.shardCount))
}

// markRowChanged records a row for the next snapshot.
func (m *Manager) markRowChanged(rowKey string) {
	m.mutex.Lock()
	m.changedRows[rowKey] = struct{}{}
	m.mutex.Unlock()
}
