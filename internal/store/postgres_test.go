package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS items`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnError(errors.New("conn refused"))

	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_items" \(LIKE items INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{itemsTempTable}, itemColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO items .* ON CONFLICT \(key\) DO UPDATE SET "link" = EXCLUDED."link"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	require.NoError(t, s.SaveItems(context.Background(), sampleItems()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveItems_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	require.NoError(t, s.SaveItems(context.Background(), []model.RegulatoryItem{{ID: "no-key"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveItems_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{itemsTempTable}, itemColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveItems(context.Background(), sampleItems())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	older, err := json.Marshal(model.RegulatoryItem{ID: "a", Link: "https://fda.gov/a", Date: day(1)})
	require.NoError(t, err)
	newer, err := json.Marshal(model.RegulatoryItem{ID: "b", Link: "https://fda.gov/b", Date: day(9)})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT key, data FROM items`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "data"}).
			AddRow("https://fda.gov/a", older).
			AddRow("https://fda.gov/b", newer))

	items, err := s.LoadItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadItems_BadJSON(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, data FROM items`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "data"}).AddRow("k", []byte("{")))

	_, err := s.LoadItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal item k")
}

func TestPostgresStore_Snapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := sampleSnapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO registry_snapshots`).
		WithArgs(data, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT data FROM registry_snapshots WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	got, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM registry_snapshots`).WillReturnError(pgx.ErrNoRows)

	got, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertItemsSQL(t *testing.T) {
	sql := upsertItemsSQL()
	assert.Contains(t, sql, `INSERT INTO items ("key", "link", "company", "item_date", "data", "updated_at")`)
	assert.Contains(t, sql, `FROM "_tmp_upsert_items"`)
	assert.NotContains(t, sql, `"key" = EXCLUDED."key"`)
}
