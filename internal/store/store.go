// Package store persists regulatory items and registry snapshots.
package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
)

// Store is the persistence boundary of the pipeline. Items are keyed by
// their dedup key; the registry is kept as a single snapshot document.
type Store interface {
	Migrate(ctx context.Context) error

	// SaveItems upserts items by DedupKey. Items with an empty key are skipped.
	SaveItems(ctx context.Context, items []model.RegulatoryItem) error
	// LoadItems returns every stored item, newest first.
	LoadItems(ctx context.Context) ([]model.RegulatoryItem, error)

	SaveSnapshot(ctx context.Context, snap model.RegistrySnapshot) error
	// LoadSnapshot returns nil, nil when nothing has been saved yet.
	LoadSnapshot(ctx context.Context) (*model.RegistrySnapshot, error)

	Close() error
}

// New opens the backend selected by cfg.Driver and runs its migration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "memory":
		st = NewMemory()
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// itemRow is the flattened form shared by the SQL backends.
type itemRow struct {
	key     string
	link    string
	company string
	item    model.RegulatoryItem
	data    []byte
}

// itemRows marshals items and collapses duplicates, later entries winning.
func itemRows(items []model.RegulatoryItem) ([]itemRow, error) {
	idx := make(map[string]int, len(items))
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		key := it.DedupKey()
		if key == "" {
			continue
		}
		data, err := json.Marshal(it)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal item %s", key)
		}
		row := itemRow{key: key, link: it.Link, company: it.Company, item: it, data: data}
		if i, ok := idx[key]; ok {
			rows[i] = row
			continue
		}
		idx[key] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

func sortItems(items []model.RegulatoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].DedupKey() < items[j].DedupKey()
	})
}
