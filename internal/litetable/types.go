package litetable

import (
	"bytes"
	"slices"
	"sort"
	"strings"
	"time"
)

// Granularity is the timestamp granularity of the store in microseconds. Writes must be whole
// milliseconds, so an open-ended timestamp range needs at least this much headroom above
// the newest cell it wants to include.
const Granularity int64 = 1000

// Cell is a single versioned value at (row, family, qualifier, timestamp).
type Cell struct {
	Family    string   `json:"family"`
	Qualifier []byte   `json:"qualifier"`
	Timestamp int64    `json:"timestamp"` // microseconds since the unix epoch
	Value     []byte   `json:"value"`
	Labels    []string `json:"labels,omitempty"`
}

// Identity is the key used when merging cells produced by independent filter branches. Labels
// are part of it: the same physical cell labelled differently by two branches is kept twice.
type Identity struct {
	Family    string
	Qualifier string
	Timestamp int64
	Value     string
	Labels    string
}

// Identity returns the merge identity of the cell.
func (c Cell) Identity() Identity {
	return Identity{
		Family:    c.Family,
		Qualifier: string(c.Qualifier),
		Timestamp: c.Timestamp,
		Value:     string(c.Value),
		Labels:    strings.Join(c.Labels, "\x00"),
	}
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	return Cell{
		Family:    c.Family,
		Qualifier: bytes.Clone(c.Qualifier),
		Timestamp: c.Timestamp,
		Value:     bytes.Clone(c.Value),
		Labels:    slices.Clone(c.Labels),
	}
}

// Row defines a row of data in LiteTable:
//
// Example:
//
//	Row{
//	  Key: []byte("phone#4c410523#20190501"),
//	  Cells: []Cell{
//	    {Family: "cell_plan", Qualifier: []byte("data_plan_01gb"), Timestamp: 1700000000000000},
//	    {Family: "cell_plan", Qualifier: []byte("data_plan_01gb"), Timestamp: 1699996400000000, Value: []byte("1")},
//	    {Family: "stats_summary", Qualifier: []byte("os_build"), Timestamp: 1700000000000000, Value: []byte("PQ2A.190405.003")},
//	  },
//	}
//
// Cells are kept in row order: family, then qualifier, then timestamp newest first.
type Row struct {
	Key   []byte `json:"key"`
	Cells []Cell `json:"cells"`
}

// IsEmpty reports whether the row has no cells.
func (r Row) IsEmpty() bool {
	return len(r.Cells) == 0
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := Row{
		Key:   bytes.Clone(r.Key),
		Cells: make([]Cell, len(r.Cells)),
	}
	for i, c := range r.Cells {
		out.Cells[i] = c.Clone()
	}
	return out
}

// WithCells returns a row sharing the key of r that holds the given cells.
func (r Row) WithCells(cells []Cell) Row {
	return Row{Key: r.Key, Cells: cells}
}

// Sort puts the cells of the row into row order.
func (r Row) Sort() {
	sort.SliceStable(r.Cells, func(i, j int) bool {
		return Less(r.Cells[i], r.Cells[j])
	})
}

// Less orders cells by family, qualifier and then newest timestamp first.
func Less(a, b Cell) bool {
	if a.Family != b.Family {
		return a.Family < b.Family
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c < 0
	}
	return a.Timestamp > b.Timestamp
}

// SortRows orders rows by row key ascending.
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].Key, rows[j].Key) < 0
	})
}

// Micros converts a wall clock time to a cell timestamp at the store granularity.
func Micros(t time.Time) int64 {
	return t.Truncate(time.Millisecond).UnixMicro()
}
