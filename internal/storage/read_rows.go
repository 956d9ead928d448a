package storage

import (
	"bytes"
	"context"
	"github.com/litetable/litetable-filter/internal/litetable"
	"sync"
	"time"
)

// GetRows returns a copy of every row in rng, sorted by key. Range reads have no shard
// affinity, so every shard is scanned in parallel.
func (m *Manager) GetRows(ctx context.Context, rng RowRange) ([]litetable.Row, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	status := "error"
	defer func() {
		if m.metrics != nil {
			m.metrics.OperationDuration.WithLabelValues("read_rows", status).
				Observe(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrDataUnavailable, "read cancelled: %v", err)
	}

	var (
		mutex  sync.Mutex
		wg     sync.WaitGroup
		result []litetable.Row
	)

	wg.Add(len(m.shardMap))
	for _, s := range m.shardMap {
		go func(shard *shard) {
			defer wg.Done()

			shard.mutex.RLock()
			local := make([]litetable.Row, 0)
			for key, data := range shard.rows {
				if ctx.Err() != nil {
					break
				}
				if !rng.Contains([]byte(key)) {
					continue
				}
				local = append(local, data.toRow(key))
			}
			shard.mutex.RUnlock()

			mutex.Lock()
			result = append(result, local...)
			mutex.Unlock()
		}(s)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrDataUnavailable, "read cancelled: %v", err)
	}

	litetable.SortRows(result)
	status = "ok"
	return result, nil
}

// GetRow returns a copy of a single row.
func (m *Manager) GetRow(key string) (litetable.Row, bool) {
	s := m.shardMap[m.getShardIndex(key)]
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.rows[key]
	if !ok {
		return litetable.Row{}, false
	}
	return data.toRow(key), true
}

// toRow copies the row out of the shard in row order. The caller holds the shard lock.
func (d rowData) toRow(key string) litetable.Row {
	row := litetable.Row{Key: []byte(key)}
	for family, qualifiers := range d {
		for qualifier, versions := range qualifiers {
			for _, v := range versions {
				row.Cells = append(row.Cells, litetable.Cell{
					Family:    family,
					Qualifier: []byte(qualifier),
					Timestamp: v.Timestamp,
					Value:     bytes.Clone(v.Value),
				})
			}
		}
	}
	row.Sort()
	return row
}
