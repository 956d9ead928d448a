package storage

import (
	"bytes"
	"context"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/mutation"
)

//go:generate mockgen -destination=./store_mock.go -package=storage -source=store.go

// RowStore is the row store contract the transports and the CLI depend on. It is implemented
// by the sharded in-memory Manager and by the badger backend.
type RowStore interface {
	// CreateFamilies allows writes to the given column families.
	CreateFamilies(families ...string) error
	// Families returns the allowed column families.
	Families() []string
	// ApplyMutations writes every entry of the batch or none of them.
	ApplyMutations(ctx context.Context, batch mutation.Batch) error
	// GetRows returns the rows in rng sorted by key, cells in row order.
	GetRows(ctx context.Context, rng RowRange) ([]litetable.Row, error)
}

// RowRange selects rows by key. Start is inclusive, End exclusive, and both are optional;
// Prefix further restricts the keys. The zero RowRange selects every row.
type RowRange struct {
	Start  []byte `json:"start,omitempty"`
	End    []byte `json:"end,omitempty"`
	Prefix []byte `json:"prefix,omitempty"`
}

// Validate rejects a range whose end sorts before its start.
func (r RowRange) Validate() error {
	if len(r.End) > 0 && bytes.Compare(r.End, r.Start) < 0 {
		return NewError(ErrInvalidRange, "end %q sorts before start %q", r.End, r.Start)
	}
	return nil
}

// Contains reports whether key falls into the range.
func (r RowRange) Contains(key []byte) bool {
	if !bytes.HasPrefix(key, r.Prefix) {
		return false
	}
	if bytes.Compare(key, r.Start) < 0 {
		return false
	}
	return len(r.End) == 0 || bytes.Compare(key, r.End) < 0
}
