package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fda-watch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	link       TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	item_date  DATETIME,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_items_company ON items(company);
CREATE INDEX IF NOT EXISTS idx_items_item_date ON items(item_date);

CREATE TABLE IF NOT EXISTS registry_snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	data     TEXT NOT NULL,
	saved_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertItem = `INSERT INTO items (key, link, company, item_date, data, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	link = excluded.link,
	company = excluded.company,
	item_date = excluded.item_date,
	data = excluded.data,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) SaveItems(ctx context.Context, items []model.RegulatoryItem) error {
	rows, err := itemRows(items)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save items: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertItem)
	if err != nil {
		return eris.Wrap(err, "sqlite: save items: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range rows {
		var date any
		if !r.item.Date.IsZero() {
			date = r.item.Date.UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.key, r.link, r.company, date, string(r.data), now); err != nil {
			return eris.Wrapf(err, "sqlite: save item %s", r.key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: save items: commit")
}

func (s *SQLiteStore) LoadItems(ctx context.Context) ([]model.RegulatoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, data FROM items`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load items")
	}
	defer rows.Close() //nolint:errcheck

	var items []model.RegulatoryItem
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		var it model.RegulatoryItem
		if err := json.Unmarshal([]byte(data), &it); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal item %s", key)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate items")
	}
	sortItems(items)
	return items, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.RegistrySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registry_snapshots (id, data, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save snapshot")
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*model.RegistrySnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM registry_snapshots WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load snapshot")
	}
	var snap model.RegistrySnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}
