package cmd

import (
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/app"
	"github.com/litetable/litetable-filter/internal/cdc_emitter"
	"github.com/litetable/litetable-filter/internal/config"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/litetable/litetable-filter/internal/storage/badger"
	"github.com/litetable/litetable-filter/internal/wal"
)

// localStore is a row store the process owns: it is started before use and stopped after.
type localStore interface {
	storage.RowStore
	app.Dependency
}

// walStore closes the WAL after the memory store has written its final snapshot.
type walStore struct {
	*storage.Manager
	wal *wal.Manager
}

func (s *walStore) Stop() error {
	return errors.Join(s.Manager.Stop(), s.wal.Close())
}

// openStore opens the configured backend under the data directory. cdc and metrics are
// optional.
func openStore(cfg *config.Config, cdc *cdc_emitter.Manager, metrics *observability.Metrics) (localStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		badgerCfg := &badger.Config{
			Path:       cfg.BadgerDir(),
			SyncWrites: cfg.Storage.SyncWrites,
			Metrics:    metrics,
		}
		if cdc != nil {
			badgerCfg.CDC = cdc
		}
		store, err := badger.New(badgerCfg)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMemory:
		walManager, err := wal.New(&wal.Config{Path: cfg.DataDir})
		if err != nil {
			return nil, err
		}
		storeCfg := &storage.Config{
			RootDir:          cfg.DataDir,
			ShardCount:       cfg.Storage.ShardCount,
			SnapshotInterval: cfg.Storage.SnapshotInterval,
			MaxSnapshots:     cfg.Storage.MaxSnapshots,
			WAL:              walManager,
			Metrics:          metrics,
		}
		if cdc != nil {
			storeCfg.CDC = cdc
		}
		manager, err := storage.New(storeCfg)
		if err != nil {
			return nil, errors.Join(err, walManager.Close())
		}
		return &walStore{Manager: manager, wal: walManager}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// withStore opens and starts the local store, runs fn and stops the store again.
func withStore(cfg *config.Config, fn func(storage.RowStore) error) (err error) {
	store, err := openStore(cfg, nil, nil)
	if err != nil {
		return err
	}
	if err = store.Start(); err != nil {
		return errors.Join(fmt.Errorf("start %s: %w", store.Name(), err), store.Stop())
	}
	defer func() {
		if stopErr := store.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop %s: %w", store.Name(), stopErr))
		}
	}()
	return fn(store)
}
