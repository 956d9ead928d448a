package storage

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/fixtures"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/wal"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"
	"math"
	"sync"
	"testing"
	"time"
)

var clock = fixtures.NewClock(time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC))

type recordingEmitter struct {
	mu     sync.Mutex
	events []*cdc_emitter.CDCParams
}

func (r *recordingEmitter) Emit(params *cdc_emitter.CDCParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, params)
}

func newTestManager(t *testing.T, cfg *Config) *Manager {
	t.Helper()
	if cfg.RootDir == "" {
		cfg.RootDir = t.TempDir()
	}
	if cfg.Bucket == nil {
		cfg.Bucket = objstore.NewInMemBucket()
	}
	m, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.CreateFamilies(fixtures.Families()...))
	return m
}

func TestGetShardIndex(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		shardCount int
		rowKeys    []string
	}{
		"single shard returns zero index": {
			shardCount: 1,
			rowKeys:    []string{"phone#1", "phone#2", "phone#3"},
		},
		"multiple shards distribute keys": {
			shardCount: 8,
			rowKeys:    []string{"phone#1", "phone#2", "phone#3", "tablet#a", "tablet#b", "o"},
		},
		"large number of shards": {
			shardCount: 50,
			rowKeys:    []string{"user:1", "user:2", "post:10", "post:11", "comment:5"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)
			m := &Manager{shardCount: tc.shardCount}

			for _, key := range tc.rowKeys {
				first := m.getShardIndex(key)
				req.GreaterOrEqual(first, 0)
				req.Less(first, tc.shardCount)
				for i := 0; i < 100; i++ {
					req.Equal(first, m.getShardIndex(key))
				}
			}
		})
	}
}

func TestGetShardIndexDistribution(t *testing.T) {
	t.Parallel()

	shardCount := 16
	keyCount := 100000
	m := &Manager{shardCount: shardCount}

	distribution := make([]int, shardCount)
	for i := 0; i < keyCount; i++ {
		distribution[m.getShardIndex(uuid.NewString())]++
	}

	expected := float64(keyCount) / float64(shardCount)
	for i, count := range distribution {
		deviation := math.Abs(float64(count)-expected) / expected
		require.Lessf(t, deviation, 0.1, "shard %d holds %d keys", i, count)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     func(dir string) *Config
		wantErr bool
	}{
		"valid config": {
			cfg: func(dir string) *Config {
				return &Config{RootDir: dir}
			},
		},
		"missing root dir": {
			cfg: func(string) *Config {
				return &Config{}
			},
			wantErr: true,
		},
		"too many shards": {
			cfg: func(dir string) *Config {
				return &Config{RootDir: dir, ShardCount: 51}
			},
			wantErr: true,
		},
		"negative snapshot interval": {
			cfg: func(dir string) *Config {
				return &Config{RootDir: dir, SnapshotInterval: -time.Second}
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			m, err := New(tc.cfg(t.TempDir()))
			if tc.wantErr {
				req.Error(err)
				req.Nil(m)
				return
			}
			req.NoError(err)
			req.Equal(defaultShardCount, len(m.shardMap))
			req.Equal(defaultSnapshotInterval, m.snapshotInterval)
			req.True(m.ownsBucket)
		})
	}
}

func TestManager_Families(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	dir := t.TempDir()
	m, err := New(&Config{RootDir: dir, Bucket: objstore.NewInMemBucket()})
	req.NoError(err)
	req.Empty(m.Families())
	req.False(m.IsFamilyAllowed(fixtures.CellPlan))

	req.NoError(m.CreateFamilies(fixtures.StatsSummary, fixtures.CellPlan))
	req.NoError(m.CreateFamilies(fixtures.CellPlan))
	req.Equal([]string{fixtures.CellPlan, fixtures.StatsSummary}, m.Families())
	req.True(m.IsFamilyAllowed(fixtures.CellPlan))

	req.Error(m.CreateFamilies())
	req.Error(m.CreateFamilies(" "))

	reopened, err := New(&Config{RootDir: dir, Bucket: objstore.NewInMemBucket()})
	req.NoError(err)
	req.Equal(m.Families(), reopened.Families(), "families are persisted")
}

func TestManager_ApplyMutations(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		batch    mutation.Batch
		ctx      func() context.Context
		wantErr  error
		wantRows int
	}{
		"writes the dataset": {
			batch:    fixtures.Batch(clock),
			wantRows: 5,
		},
		"family not created": {
			batch:   mutation.NewBuilder().UpsertString("r", "unknown", "q", "v", 1).Batch(),
			wantErr: ErrFamilyNotAllowed,
		},
		"invalid batch": {
			batch:   mutation.NewBuilder().UpsertString("", fixtures.CellPlan, "q", "v", 1).Batch(),
			wantErr: mutation.ErrInvalidMutation,
		},
		"sub-millisecond timestamp": {
			batch: mutation.NewBuilder().
				UpsertString("r", fixtures.CellPlan, "q", "v", 1000).
				UpsertString("r", fixtures.CellPlan, "q", "v", 1001).
				Batch(),
			wantErr: mutation.ErrInvalidMutation,
		},
		"cancelled": {
			batch: fixtures.Batch(clock),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: ErrDataUnavailable,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			emitter := &recordingEmitter{}
			metrics := observability.NewMetrics()
			m := newTestManager(t, &Config{ShardCount: 4, CDC: emitter, Metrics: metrics})

			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}

			err := m.ApplyMutations(ctx, tc.batch)
			if tc.wantErr != nil {
				req.Error(err)
				req.True(errors.Is(err, tc.wantErr))
				req.Empty(emitter.events, "rejected batches emit nothing")

				rows, err := m.GetRows(context.Background(), RowRange{})
				req.NoError(err)
				req.Empty(rows)
				return
			}

			req.NoError(err)
			req.Len(emitter.events, len(tc.batch.Entries))
			req.Equal(float64(len(tc.batch.Entries)), testutil.ToFloat64(metrics.CellsWritten))

			rows, err := m.GetRows(context.Background(), RowRange{})
			req.NoError(err)
			req.Len(rows, tc.wantRows)
			req.Equal(fixtures.Rows(clock), rows)
		})
	}
}

func TestManager_ApplyMutations_versions(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	m := newTestManager(t, &Config{})
	ctx := context.Background()

	req.NoError(m.ApplyMutations(ctx, mutation.NewBuilder().
		UpsertString("r", fixtures.CellPlan, "q", "old", 2000).
		UpsertString("r", fixtures.CellPlan, "q", "oldest", 1000).
		Batch()))
	req.NoError(m.ApplyMutations(ctx, mutation.NewBuilder().
		UpsertString("r", fixtures.CellPlan, "q", "new", 3000).
		UpsertString("r", fixtures.CellPlan, "q", "replaced", 2000).
		Batch()))

	err := m.ApplyMutations(ctx, mutation.NewBuilder().
		UpsertString("r", fixtures.CellPlan, "q", "sub-millisecond", 1999).
		Batch())
	req.True(errors.Is(err, mutation.ErrInvalidMutation), "got %v", err)

	row, ok := m.GetRow("r")
	req.True(ok)
	req.Len(row.Cells, 3)
	req.Equal("new", string(row.Cells[0].Value))
	req.Equal("replaced", string(row.Cells[1].Value))
	req.Equal(int64(1000), row.Cells[2].Timestamp)
	req.Equal("oldest", string(row.Cells[2].Value))

	_, ok = m.GetRow("missing")
	req.False(ok)
}

// blockingEmitter holds every Emit until release is closed.
type blockingEmitter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmitter) Emit(*cdc_emitter.CDCParams) {
	b.once.Do(func() { close(b.started) })
	<-b.release
}

func TestManager_ApplyMutations_slowCDC(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	emitter := &blockingEmitter{started: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(t, &Config{CDC: emitter})
	ctx := context.Background()

	applied := make(chan error, 1)
	go func() {
		applied <- m.ApplyMutations(ctx, fixtures.Batch(clock))
	}()

	select {
	case <-emitter.started:
	case <-time.After(5 * time.Second):
		req.FailNow("emit was never called")
	}

	snapshotted := make(chan error, 1)
	go func() {
		snapshotted <- m.Snapshot(ctx)
	}()

	select {
	case err := <-snapshotted:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		close(emitter.release)
		req.FailNow("snapshot blocked behind a pending CDC emit")
	}

	close(emitter.release)
	req.NoError(<-applied)
}

func TestManager_GetRows(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &Config{ShardCount: 3})
	require.NoError(t, m.ApplyMutations(context.Background(), fixtures.Batch(clock)))

	tests := map[string]struct {
		rng      RowRange
		wantKeys []string
		wantErr  error
	}{
		"prefix": {
			rng:      RowRange{Prefix: []byte("phone#5c10102")},
			wantKeys: []string{"phone#5c10102#20190501", "phone#5c10102#20190502"},
		},
		"start and end": {
			rng: RowRange{
				Start: []byte("phone#4c410523#20190502"),
				End:   []byte("phone#5c10102#20190502"),
			},
			wantKeys: []string{
				"phone#4c410523#20190502", "phone#4c410523#20190505", "phone#5c10102#20190501",
			},
		},
		"no match": {
			rng: RowRange{Prefix: []byte("tablet")},
		},
		"end before start": {
			rng:     RowRange{Start: []byte("b"), End: []byte("a")},
			wantErr: ErrInvalidRange,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			rows, err := m.GetRows(context.Background(), tc.rng)
			if tc.wantErr != nil {
				req.True(errors.Is(err, tc.wantErr))
				return
			}
			req.NoError(err)

			keys := make([]string, 0, len(rows))
			for _, r := range rows {
				keys = append(keys, string(r.Key))
			}
			req.Equal(len(tc.wantKeys), len(keys))
			if len(tc.wantKeys) > 0 {
				req.Equal(tc.wantKeys, keys)
			}
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.GetRows(ctx, RowRange{})
		require.True(t, errors.Is(err, ErrDataUnavailable))
	})
}

func TestManager_SnapshotRestore(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	dir := t.TempDir()
	bucket := objstore.NewInMemBucket()
	ctx := context.Background()

	w, err := wal.New(&wal.Config{Path: dir})
	req.NoError(err)
	defer w.Close()

	m := newTestManager(t, &Config{RootDir: dir, Bucket: bucket, WAL: w, MaxSnapshots: 2})
	req.NoError(m.ApplyMutations(ctx, fixtures.Batch(clock)))

	req.NoError(m.Snapshot(ctx))
	req.False(m.LastSnapshotTime().IsZero())
	count, err := w.Load(func(*wal.Entry) error { return nil })
	req.NoError(err)
	req.Zero(count, "snapshot truncates the log")

	// a write after the snapshot only lives in the log
	req.NoError(m.ApplyMutations(ctx, mutation.NewBuilder().
		UpsertString("tablet#1", fixtures.StatsSummary, "os_build", "X1", clock.Now).
		Batch()))

	restored, err := New(&Config{RootDir: dir, Bucket: bucket, WAL: w})
	req.NoError(err)
	req.NoError(restored.Restore(ctx))

	rows, err := restored.GetRows(ctx, RowRange{})
	req.NoError(err)
	req.Len(rows, 6)
	req.Equal(fixtures.Rows(clock), rows[:5])
	req.Equal("tablet#1", string(rows[5].Key))
	req.Contains(restored.changedRows, "tablet#1", "replayed rows are due for the next snapshot")
}

func TestManager_Snapshot_prunes(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	bucket := objstore.NewInMemBucket()
	ctx := context.Background()
	m := newTestManager(t, &Config{Bucket: bucket, MaxSnapshots: 2})

	req.NoError(m.Snapshot(ctx), "nothing changed")
	names, err := m.listSnapshots(ctx)
	req.NoError(err)
	req.Empty(names)

	for i := 0; i < 4; i++ {
		req.NoError(m.ApplyMutations(ctx, mutation.NewBuilder().
			UpsertInt("r", fixtures.StatsSummary, "n", int64(i), int64(i)*1000).
			Batch()))
		req.NoError(m.Snapshot(ctx))
		time.Sleep(time.Millisecond)
	}

	names, err = m.listSnapshots(ctx)
	req.NoError(err)
	req.Len(names, 2)
}

func TestManager_StartStop(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	bucket := objstore.NewInMemBucket()
	m := newTestManager(t, &Config{Bucket: bucket, SnapshotInterval: time.Hour})
	req.Equal("Shard Storage", m.Name())
	req.NoError(m.Start())
	req.NoError(m.ApplyMutations(context.Background(), fixtures.Batch(clock)))
	req.NoError(m.Stop())

	names, err := m.listSnapshots(context.Background())
	req.NoError(err)
	req.Len(names, 1, "stop flushes a final snapshot")
}
