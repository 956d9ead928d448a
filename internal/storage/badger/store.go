// Package badger provides a BadgerDB-backed row store. Every cell version is one key, laid out
// so that a forward iteration yields rows by key and cells in row order:
//
//	r/<row key> 0x00 <family> 0x00 <qualifier> 0x00 <^timestamp, 8 bytes big endian>
//
// Column families live under f/<family>. Row keys and family names must not contain 0x00.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/rs/zerolog/log"
	"slices"
	"strings"
	"sync/atomic"
)

const (
	rowPrefix    = "r/"
	familyPrefix = "f/"
	separator    = 0x00
)

// ErrClosed is returned by every operation after Stop.
var ErrClosed = errors.New("badger store is closed")

type cdcEmitter interface {
	Emit(params *cdc_emitter.CDCParams)
}

type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool

	CDC     cdcEmitter
	Metrics *observability.Metrics
}

func (c *Config) validate() error {
	if c.Path == "" && !c.InMemory {
		return fmt.Errorf("badger: path is required unless in_memory is set")
	}
	return nil
}

// Store is a storage.RowStore backed by BadgerDB.
type Store struct {
	db      *badgerdb.DB
	closed  atomic.Bool
	cdc     cdcEmitter
	metrics *observability.Metrics
}

var _ storage.RowStore = (*Store)(nil)

// New opens the database.
func New(cfg *Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	opts := badgerdb.DefaultOptions(path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil // Suppress badger's internal logging

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	return &Store{db: db, cdc: cfg.CDC, metrics: cfg.Metrics}, nil
}

func (s *Store) Start() error {
	log.Info().Msg("badger row store opened")
	return nil
}

// Stop closes the database. It is safe to call more than once.
func (s *Store) Stop() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Name() string {
	return "Badger Storage"
}

func (s *Store) checkClosed() error {
	if s.closed.Load() {
		return storage.NewError(storage.ErrDataUnavailable, "%v", ErrClosed)
	}
	return nil
}

// CreateFamilies allows writes to the given column families.
func (s *Store) CreateFamilies(families ...string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if len(families) == 0 {
		return fmt.Errorf("at least one family is required")
	}
	for _, f := range families {
		if strings.TrimSpace(f) == "" || strings.IndexByte(f, separator) >= 0 {
			return fmt.Errorf("invalid family name %q", f)
		}
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, f := range families {
			if err := txn.Set([]byte(familyPrefix+f), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: create families: %w", err)
	}
	return nil
}

// Families returns the allowed column families in sorted order.
func (s *Store) Families() []string {
	if s.checkClosed() != nil {
		return nil
	}

	families := make([]string, 0)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(familyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			families = append(families, strings.TrimPrefix(string(it.Item().Key()), familyPrefix))
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to list column families")
		return nil
	}
	return families
}

// ApplyMutations writes the batch in a single transaction.
func (s *Store) ApplyMutations(ctx context.Context, batch mutation.Batch) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	allowed := s.Families()
	for _, family := range batch.Families() {
		if !slices.Contains(allowed, family) {
			return storage.NewError(storage.ErrFamilyNotAllowed, "%s", family)
		}
	}
	for i, e := range batch.Entries {
		if strings.IndexByte(e.RowKey, separator) >= 0 {
			return fmt.Errorf("%w: entry %d: row key contains a NUL byte", mutation.ErrInvalidMutation, i)
		}
		if strings.IndexByte(e.Qualifier, separator) >= 0 {
			return fmt.Errorf("%w: entry %d: qualifier contains a NUL byte", mutation.ErrInvalidMutation, i)
		}
	}
	if err := batch.CheckGranularity(litetable.Granularity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storage.NewError(storage.ErrDataUnavailable, "mutation cancelled: %v", err)
	}

	cells := make([]litetable.Cell, len(batch.Entries))
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for i, e := range batch.Entries {
			cell := e.Cell()
			cells[i] = cell
			if err := txn.Set(cellKey(e.RowKey, cell), cell.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storage.NewError(storage.ErrDataUnavailable, "badger: write: %v", err)
	}

	if s.cdc != nil {
		for i, e := range batch.Entries {
			s.cdc.Emit(&cdc_emitter.CDCParams{
				Operation: litetable.OperationWrite,
				RowKey:    e.RowKey,
				Cell:      cells[i],
			})
		}
	}
	if s.metrics != nil {
		s.metrics.CellsWritten.Add(float64(len(batch.Entries)))
	}
	return nil
}

// GetRows iterates the keys of rng in order and assembles them into rows.
func (s *Store) GetRows(ctx context.Context, rng storage.RowRange) ([]litetable.Row, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	prefix := append([]byte(rowPrefix), rng.Prefix...)
	seek := prefix
	if start := append([]byte(rowPrefix), rng.Start...); bytes.Compare(start, seek) > 0 {
		seek = start
	}

	var rows []litetable.Row
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return storage.NewError(storage.ErrDataUnavailable, "read cancelled: %v", err)
			}

			item := it.Item()
			rowKey, cell, err := parseCellKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			if !rng.Contains(rowKey) {
				// keys are ordered, so leaving the range means we are past End
				break
			}

			cell.Value, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if cell.Value == nil {
				cell.Value = []byte{}
			}

			if n := len(rows); n == 0 || !bytes.Equal(rows[n-1].Key, rowKey) {
				rows = append(rows, litetable.Row{Key: rowKey})
			}
			rows[len(rows)-1].Cells = append(rows[len(rows)-1].Cells, cell)
		}
		return nil
	})
	if err != nil {
		var storageErr *storage.Error
		if errors.As(err, &storageErr) {
			return nil, err
		}
		return nil, storage.NewError(storage.ErrDataUnavailable, "badger: read: %v", err)
	}
	for i := range rows {
		rows[i].Sort()
	}
	return rows, nil
}

func cellKey(rowKey string, cell litetable.Cell) []byte {
	key := make([]byte, 0, len(rowPrefix)+len(rowKey)+len(cell.Family)+len(cell.Qualifier)+11)
	key = append(key, rowPrefix...)
	key = append(key, rowKey...)
	key = append(key, separator)
	key = append(key, cell.Family...)
	key = append(key, separator)
	key = append(key, cell.Qualifier...)
	key = append(key, separator)
	// inverted so newer versions sort first
	return binary.BigEndian.AppendUint64(key, ^uint64(cell.Timestamp))
}

func parseCellKey(key []byte) ([]byte, litetable.Cell, error) {
	body, ok := bytes.CutPrefix(key, []byte(rowPrefix))
	if !ok || len(body) < 9 || body[len(body)-9] != separator {
		return nil, litetable.Cell{}, fmt.Errorf("badger: malformed cell key %q", key)
	}
	ts := int64(^binary.BigEndian.Uint64(body[len(body)-8:]))
	body = body[:len(body)-9]

	rowKey, rest, ok := bytes.Cut(body, []byte{separator})
	if !ok {
		return nil, litetable.Cell{}, fmt.Errorf("badger: malformed cell key %q", key)
	}
	family, qualifier, ok := bytes.Cut(rest, []byte{separator})
	if !ok {
		return nil, litetable.Cell{}, fmt.Errorf("badger: malformed cell key %q", key)
	}

	return rowKey, litetable.Cell{
		Family:    string(family),
		Qualifier: qualifier,
		Timestamp: ts,
	}, nil
}
