package storage

import (
	"bytes"
	"context"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/wal"
	"time"
)

// ApplyMutations writes every entry of the batch. The batch is validated and its families
// checked before anything is written, so a rejected batch leaves the table untouched. Cell
// timestamps must be whole milliseconds; writing an existing version replaces its value.
func (m *Manager) ApplyMutations(ctx context.Context, batch mutation.Batch) error {
	start := time.Now()
	status := "error"
	defer func() {
		if m.metrics != nil {
			m.metrics.OperationDuration.WithLabelValues("mutate", status).
				Observe(time.Since(start).Seconds())
		}
	}()

	if err := batch.Validate(); err != nil {
		return err
	}
	for _, family := range batch.Families() {
		if !m.IsFamilyAllowed(family) {
			return NewError(ErrFamilyNotAllowed, "%s", family)
		}
	}
	if err := batch.CheckGranularity(litetable.Granularity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewError(ErrDataUnavailable, "mutation cancelled: %v", err)
	}

	cells, err := m.writeBatch(batch)
	if err != nil {
		return err
	}

	// Emit blocks while the CDC buffer is full, so it runs without writeMu held.
	if m.cdc != nil {
		for i, e := range batch.Entries {
			m.cdc.Emit(&cdc_emitter.CDCParams{
				Operation: litetable.OperationWrite,
				RowKey:    e.RowKey,
				Cell:      cells[i],
			})
		}
	}

	if m.metrics != nil {
		m.metrics.CellsWritten.Add(float64(len(batch.Entries)))
	}
	status = "ok"
	return nil
}

// writeBatch logs the batch to the WAL and applies it while holding writeMu shared.
func (m *Manager) writeBatch(batch mutation.Batch) ([]litetable.Cell, error) {
	m.writeMu.RLock()
	defer m.writeMu.RUnlock()

	if m.wal != nil {
		if err := m.wal.Apply(&wal.Entry{
			Operation: litetable.OperationWrite,
			Batch:     batch,
		}); err != nil {
			return nil, NewError(ErrDataUnavailable, "write-ahead log: %v", err)
		}
	}
	return m.applyBatch(batch), nil
}

// applyBatch writes the batch into the shards and returns the stored cells in entry order.
// WAL replay calls it directly, so restarting does not repeat CDC events.
func (m *Manager) applyBatch(batch mutation.Batch) []litetable.Cell {
	cells := make([]litetable.Cell, len(batch.Entries))
	for i, e := range batch.Entries {
		cell := e.Cell()
		cell.Value = bytes.Clone(cell.Value)
		if cell.Value == nil {
			cell.Value = []byte{}
		}

		s := m.shardMap[m.getShardIndex(e.RowKey)]
		s.mutex.Lock()
		s.put(e.RowKey, cell)
		s.mutex.Unlock()

		m.markRowChanged(e.RowKey)
		cells[i] = cell
	}
	return cells
}

// put inserts the cell into the row, keeping versions newest first. The caller holds the
// shard lock.
func (s *shard) put(rowKey string, cell litetable.Cell) {
	row, ok := s.rows[rowKey]
	if !ok {
		row = make(rowData)
		s.rows[rowKey] = row
	}
	family, ok := row[cell.Family]
	if !ok {
		family = make(map[string][]version)
		row[cell.Family] = family
	}

	qualifier := string(cell.Qualifier)
	versions := family[qualifier]

	i := 0
	for i < len(versions) && versions[i].Timestamp > cell.Timestamp {
		i++
	}
	if i < len(versions) && versions[i].Timestamp == cell.Timestamp {
		versions[i].Value = cell.Value
		return
	}

	versions = append(versions, version{})
	copy(versions[i+1:], versions[i:])
	versions[i] = version{Timestamp: cell.Timestamp, Value: cell.Value}
	family[qualifier] = versions
}
