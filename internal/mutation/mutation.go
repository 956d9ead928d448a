// Package mutation builds batches of timestamped cell upserts.
package mutation

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/litetable/litetable-filter/internal/litetable"
	"strconv"
	"time"
)

// ErrInvalidMutation is returned when a batch contains an entry that cannot be written.
var ErrInvalidMutation = errors.New("invalid mutation")

// Entry is a single upsert of one cell.
type Entry struct {
	RowKey    string `json:"row_key"`
	Family    string `json:"family"`
	Qualifier string `json:"qualifier"`
	Value     []byte `json:"value"`
	Timestamp int64  `json:"timestamp"` // microseconds
}

// Cell returns the cell written by the entry.
func (e Entry) Cell() litetable.Cell {
	return litetable.Cell{
		Family:    e.Family,
		Qualifier: []byte(e.Qualifier),
		Timestamp: e.Timestamp,
		Value:     e.Value,
	}
}

// Builder accumulates upserts. It is not safe for concurrent use.
type Builder struct {
	entries []Entry
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Upsert writes value to (rowKey, family, qualifier) at timestamp ts.
func (b *Builder) Upsert(rowKey, family, qualifier string, value []byte, ts int64) *Builder {
	b.entries = append(b.entries, Entry{
		RowKey:    rowKey,
		Family:    family,
		Qualifier: qualifier,
		Value:     value,
		Timestamp: ts,
	})
	return b
}

// UpsertString writes a string value.
func (b *Builder) UpsertString(rowKey, family, qualifier, value string, ts int64) *Builder {
	return b.Upsert(rowKey, family, qualifier, []byte(value), ts)
}

// UpsertInt writes an integer as its decimal representation.
func (b *Builder) UpsertInt(rowKey, family, qualifier string, value int64, ts int64) *Builder {
	return b.Upsert(rowKey, family, qualifier, []byte(strconv.FormatInt(value, 10)), ts)
}

// UpsertBool writes true as "1" and false as an empty value.
func (b *Builder) UpsertBool(rowKey, family, qualifier string, value bool, ts int64) *Builder {
	v := []byte{}
	if value {
		v = []byte("1")
	}
	return b.Upsert(rowKey, family, qualifier, v, ts)
}

// Len returns the number of upserts added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Batch returns the accumulated upserts as a batch. The builder can keep being used; later
// upserts do not affect the returned batch.
func (b *Builder) Batch() Batch {
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	return Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Entries:   entries,
	}
}

// Batch is an ordered set of upserts applied together.
type Batch struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`
}

// Validate checks every entry of the batch and reports all problems at once.
func (b Batch) Validate() error {
	if len(b.Entries) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidMutation)
	}

	var errs []error
	for i, e := range b.Entries {
		if e.RowKey == "" {
			errs = append(errs, fmt.Errorf("%w: entry %d: row key is required", ErrInvalidMutation, i))
		}
		if e.Family == "" {
			errs = append(errs, fmt.Errorf("%w: entry %d: family is required", ErrInvalidMutation, i))
		}
		if e.Timestamp < 0 {
			errs = append(errs, fmt.Errorf("%w: entry %d: negative timestamp %d",
				ErrInvalidMutation, i, e.Timestamp))
		}
	}
	return errors.Join(errs...)
}

// CheckGranularity rejects entries whose timestamp is not a multiple of granularity.
func (b Batch) CheckGranularity(granularity int64) error {
	for i, e := range b.Entries {
		if e.Timestamp%granularity != 0 {
			return fmt.Errorf("%w: entry %d: timestamp %d is not a multiple of %d",
				ErrInvalidMutation, i, e.Timestamp, granularity)
		}
	}
	return nil
}

// RowKeys returns the distinct row keys of the batch in first-seen order.
func (b Batch) RowKeys() []string {
	seen := make(map[string]struct{}, len(b.Entries))
	var keys []string
	for _, e := range b.Entries {
		if _, ok := seen[e.RowKey]; ok {
			continue
		}
		seen[e.RowKey] = struct{}{}
		keys = append(keys, e.RowKey)
	}
	return keys
}

// Families returns the distinct column families of the batch in first-seen order.
func (b Batch) Families() []string {
	seen := make(map[string]struct{})
	var families []string
	for _, e := range b.Entries {
		if _, ok := seen[e.Family]; ok {
			continue
		}
		seen[e.Family] = struct{}{}
		families = append(families, e.Family)
	}
	return families
}

// Rows materializes the batch as rows sorted by key, with cells in row order. A later upsert
// of the same (family, qualifier, timestamp) replaces the earlier value.
func (b Batch) Rows() []litetable.Row {
	type column struct {
		family    string
		qualifier string
		timestamp int64
	}

	byKey := make(map[string]map[column]int)
	rows := make(map[string]*litetable.Row)
	for _, e := range b.Entries {
		row, ok := rows[e.RowKey]
		if !ok {
			row = &litetable.Row{Key: []byte(e.RowKey)}
			rows[e.RowKey] = row
			byKey[e.RowKey] = make(map[column]int)
		}

		col := column{e.Family, e.Qualifier, e.Timestamp}
		if i, exists := byKey[e.RowKey][col]; exists {
			row.Cells[i].Value = e.Value
			continue
		}
		byKey[e.RowKey][col] = len(row.Cells)
		row.Cells = append(row.Cells, e.Cell())
	}

	out := make([]litetable.Row, 0, len(rows))
	for _, row := range rows {
		row.Sort()
		out = append(out, *row)
	}
	litetable.SortRows(out)
	return out
}
