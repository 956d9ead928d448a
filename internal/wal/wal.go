// Package wal is an append-only JSON-lines log of mutation batches. Storage appends every batch
// before applying it and replays the log on start.
package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/rs/zerolog/log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultWalDirectory = "wal"
	defaultWALFile      = "wal.log"

	maxLineSize = 64 << 20
)

// Entry represents a Write-Ahead Log entry for a mutation batch
type Entry struct {
	ID        string              `json:"id"`
	Operation litetable.Operation `json:"operation"`
	Batch     mutation.Batch      `json:"batch"`
	Timestamp time.Time           `json:"timestamp"`
}

type Manager struct {
	mu      sync.RWMutex
	walFile *os.File
	path    string
}

type Config struct {
	// Path where the WAL directory will be saved
	Path string
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Path == "" {
		errGrp = append(errGrp, errors.New("wal path cannot be empty"))
	}
	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	walPath := filepath.Join(cfg.Path, defaultWalDirectory, defaultWALFile)
	walDir := filepath.Dir(walPath)
	if err := os.MkdirAll(walDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	// Open WAL file with appropriate permissions
	file, err := os.OpenFile(walPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	return &Manager{
		walFile: file,
		path:    walPath,
	}, nil
}

// Apply appends the entry to the WAL file as a single JSON line. The entry is durable once
// Apply returns.
func (m *Manager) Apply(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = e.Batch.ID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	jsonData, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err = m.walFile.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write to WAL: %w", err)
	}
	if err = m.walFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	return nil
}

// Load replays every entry of the log in order. Lines that cannot be decoded are skipped with a
// warning; an error returned by fn stops the replay.
func (m *Manager) Load(fn func(*Entry) error) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Open(m.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open WAL for replay: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var count, line int
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping malformed WAL entry")
			continue
		}
		if err := fn(&e); err != nil {
			return count, fmt.Errorf("failed to replay WAL entry %s: %w", e.ID, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read WAL: %w", err)
	}

	log.Debug().Msgf("replayed %d WAL entries", count)
	return count, nil
}

// Truncate empties the log once its entries are covered by a snapshot.
func (m *Manager) Truncate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.walFile.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	return nil
}

// Path returns the location of the WAL file
func (m *Manager) Path() string {
	return m.path
}

// Close closes the WAL file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.walFile.Close()
}
