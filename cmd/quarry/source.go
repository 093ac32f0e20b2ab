package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/quarry/pkg/config"
	"github.com/coolbeans/quarry/pkg/dataset"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/store"
)

// snapshotExt marks files written by 'quarry snapshot'.
const snapshotExt = ".qsnp"

// readStore is what query and stats need from a store.
type readStore interface {
	store.QuadStore
	store.StatsProvider
}

// openStore returns the store to read from: the --data file when given,
// otherwise the configured backend. The returned func releases it.
func (a *app) openStore(data string) (readStore, func(), error) {
	if data == "" {
		if a.cfg.Store.Backend != config.BackendSQLite {
			return nil, nil, errors.New("no data: pass --data or configure store.backend = \"sqlite\"")
		}
		st, err := store.OpenSQLite(a.cfg.Store.Path, store.WithSQLiteLogger(a.log))
		if err != nil {
			return nil, nil, err
		}
		a.log.Debugw("opened sqlite store", logging.FieldBackend, config.BackendSQLite, logging.FieldFile, a.cfg.Store.Path)
		return st, func() { st.Close() }, nil
	}

	if strings.EqualFold(filepath.Ext(data), snapshotExt) {
		ms, n, err := readSnapshot(data)
		if err != nil {
			return nil, nil, err
		}
		a.log.Debugw("restored snapshot", logging.FieldFile, data, logging.FieldCount, n)
		return ms, func() {}, nil
	}

	ms, n, err := dataset.Open(data)
	if err != nil {
		return nil, nil, err
	}
	a.log.Debugw("loaded dataset", logging.FieldFile, data, logging.FieldCount, n)
	return ms, func() {}, nil
}

func readSnapshot(path string) (*store.MemoryStore, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open snapshot %s", path)
	}
	defer f.Close()

	ms := store.NewMemoryStore()
	n, err := store.ReadSnapshot(f, ms)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read snapshot %s", path)
	}
	return ms, n, nil
}
