package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	link       TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	item_date  TIMESTAMPTZ,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_items_company ON items(company);
CREATE INDEX IF NOT EXISTS idx_items_item_date ON items(item_date DESC);

CREATE TABLE IF NOT EXISTS registry_snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	data     JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var itemColumns = []string{"key", "link", "company", "item_date", "data", "updated_at"}

const itemsTempTable = "_tmp_upsert_items"

// SaveItems bulk-upserts through a temp table: COPY rows in, then
// INSERT ... SELECT ... ON CONFLICT (key) DO UPDATE.
func (s *PostgresStore) SaveItems(ctx context.Context, items []model.RegulatoryItem) error {
	rows, err := itemRows(items)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		var date any
		if !r.item.Date.IsZero() {
			date = r.item.Date.UTC()
		}
		copyRows[i] = []any{r.key, r.link, r.company, date, r.data, now}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save items: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE items INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{itemsTempTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return eris.Wrap(err, "postgres: save items: create temp table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{itemsTempTable}, itemColumns, pgx.CopyFromRows(copyRows)); err != nil {
		return eris.Wrap(err, "postgres: save items: COPY into temp table")
	}

	if _, err := tx.Exec(ctx, upsertItemsSQL()); err != nil {
		return eris.Wrap(err, "postgres: save items: INSERT ON CONFLICT")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: save items: commit")
}

func upsertItemsSQL() string {
	cols := quoteAndJoin(itemColumns)
	var set []string
	for _, c := range itemColumns[1:] {
		id := pgx.Identifier{c}.Sanitize()
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}
	return fmt.Sprintf(
		"INSERT INTO items (%s) SELECT %s FROM %s ON CONFLICT (key) DO UPDATE SET %s",
		cols, cols, pgx.Identifier{itemsTempTable}.Sanitize(), strings.Join(set, ", "),
	)
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func (s *PostgresStore) LoadItems(ctx context.Context) ([]model.RegulatoryItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, data FROM items ORDER BY item_date DESC NULLS LAST, key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load items")
	}
	defer rows.Close()

	var items []model.RegulatoryItem
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		var it model.RegulatoryItem
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal item %s", key)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate items")
	}
	sortItems(items)
	return items, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap model.RegistrySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO registry_snapshots (id, data, saved_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, saved_at = EXCLUDED.saved_at`,
		data, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save snapshot")
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*model.RegistrySnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM registry_snapshots WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load snapshot")
	}
	var snap model.RegistrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}
