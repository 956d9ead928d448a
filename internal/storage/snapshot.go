package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/litetable/litetable-filter/internal/wal"
	"github.com/rs/zerolog/log"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	snapshotPrefix  = "snapshots/"
	snapshotVersion = 1
)

// snapshotData is the serialized form of the whole table.
type snapshotData struct {
	Version           int                `json:"version"`
	SnapshotTimestamp int64              `json:"snapshotTimestamp"`
	Rows              map[string]rowData `json:"rows"`
}

func snapshotName(ts int64) string {
	return fmt.Sprintf("%sss-%020d.json", snapshotPrefix, ts)
}

// Snapshot writes the full table to the bucket and truncates the WAL. It is a no-op when
// nothing changed since the last snapshot. Writers are blocked while the table is copied.
func (m *Manager) Snapshot(ctx context.Context) error {
	start := time.Now()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mutex.RLock()
	changed := len(m.changedRows)
	m.mutex.RUnlock()
	if changed == 0 {
		log.Debug().Msg("no changes to snapshot")
		return nil
	}

	snapshotTime := time.Now().UnixNano()
	snapshot := &snapshotData{
		Version:           snapshotVersion,
		SnapshotTimestamp: snapshotTime,
		Rows:              make(map[string]rowData),
	}
	for _, s := range m.shardMap {
		s.mutex.RLock()
		for key, data := range s.rows {
			snapshot.Rows[key] = data
		}
		s.mutex.RUnlock()
	}

	// writers are blocked, so the shard maps cannot change while encoding
	dataBytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	name := snapshotName(snapshotTime)
	if err = m.bucket.Upload(ctx, name, bytes.NewReader(dataBytes)); err != nil {
		return NewError(ErrDataUnavailable, "upload snapshot %s: %v", name, err)
	}

	if m.wal != nil {
		if err = m.wal.Truncate(); err != nil {
			return fmt.Errorf("failed to truncate write-ahead log: %w", err)
		}
	}

	m.mutex.Lock()
	m.changedRows = make(map[string]struct{})
	m.lastSnapshotTime = time.Unix(0, snapshotTime)
	m.mutex.Unlock()

	m.pruneSnapshots(ctx)

	log.Info().
		Str("duration", time.Since(start).String()).
		Int("rows", len(snapshot.Rows)).
		Msgf("snapshot saved to %s", name)
	return nil
}

// Restore loads the latest snapshot, if any, and replays the WAL on top of it.
func (m *Manager) Restore(ctx context.Context) error {
	start := time.Now()

	names, err := m.listSnapshots(ctx)
	if err != nil {
		return err
	}

	restored := 0
	if len(names) > 0 {
		latest := names[len(names)-1]
		snapshot, err := m.readSnapshot(ctx, latest)
		if err != nil {
			return err
		}
		if snapshot.Version != snapshotVersion {
			return fmt.Errorf("unsupported snapshot version %d in %s", snapshot.Version, latest)
		}

		for key, data := range snapshot.Rows {
			s := m.shardMap[m.getShardIndex(key)]
			s.mutex.Lock()
			s.rows[key] = data
			s.mutex.Unlock()
		}
		restored = len(snapshot.Rows)

		m.mutex.Lock()
		m.lastSnapshotTime = time.Unix(0, snapshot.SnapshotTimestamp)
		m.mutex.Unlock()
	}

	replayed := 0
	if m.wal != nil {
		replayed, err = m.wal.Load(func(e *wal.Entry) error {
			m.applyBatch(e.Batch)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to replay write-ahead log: %w", err)
		}
	}

	log.Info().
		Str("duration", time.Since(start).String()).
		Int("rows", restored).
		Int("walEntries", replayed).
		Msg("storage restored")
	return nil
}

// LastSnapshotTime returns when the latest snapshot was taken or restored.
func (m *Manager) LastSnapshotTime() time.Time {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.lastSnapshotTime
}

// listSnapshots returns the snapshot object names, oldest first.
func (m *Manager) listSnapshots(ctx context.Context) ([]string, error) {
	var names []string
	err := m.bucket.Iter(ctx, snapshotPrefix, func(name string) error {
		if strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) readSnapshot(ctx context.Context, name string) (*snapshotData, error) {
	rc, err := m.bucket.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	var snapshot snapshotData
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	if snapshot.Rows == nil {
		snapshot.Rows = make(map[string]rowData)
	}
	return &snapshot, nil
}

// pruneSnapshots keeps the newest maxSnapshots objects.
func (m *Manager) pruneSnapshots(ctx context.Context) {
	names, err := m.listSnapshots(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list snapshots for pruning")
		return
	}
	if len(names) <= m.maxSnapshots {
		return
	}

	for _, name := range names[:len(names)-m.maxSnapshots] {
		if err = m.bucket.Delete(ctx, name); err != nil {
			log.Error().Err(err).Str("snapshot", name).Msg("failed to delete old snapshot")
			continue
		}
		log.Debug().Str("snapshot", name).Msg("deleted old snapshot")
	}
}
