package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

var (
	getQuery = regexp.QuoteMeta(`
		SELECT value
		FROM fabrics.kv_store
		WHERE key = $1;
	`)
	putQuery = regexp.QuoteMeta(`
		INSERT INTO fabrics.kv_store (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;
	`)
)

func TestPostgresStore_Get(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[101,202]`))
	mock.ExpectQuery(getQuery).WithArgs("telegram:recipients").WillReturnRows(rows)

	value, err := store.Get(context.Background(), "telegram:recipients")

	require.NoError(t, err)
	assert.JSONEq(t, `[101,202]`, string(value))
	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(getQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	value, err := store.Get(context.Background(), "missing")

	assert.Nil(t, value)
	assert.True(t, errors.Is(err, ErrKeyNotFound), "Expected ErrKeyNotFound")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_DBError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	dbErr := errors.New("connection reset by peer")
	mock.ExpectQuery(getQuery).WithArgs("k").WillReturnError(dbErr)

	_, err := store.Get(context.Background(), "k")

	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
	assert.False(t, errors.Is(err, ErrKeyNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(putQuery).
		WithArgs("telegram:recipients", []byte(`[101]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), "telegram:recipients", json.RawMessage(`[101]`))

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put_RejectsBadInput(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	assert.ErrorIs(t, store.Put(context.Background(), " ", json.RawMessage(`{}`)), ErrInvalidKey)
	assert.ErrorIs(t, store.Put(context.Background(), "k", json.RawMessage(`{not json`)), ErrInvalidValue)
	_, err := store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// Nothing may reach the database.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put_InvalidJSONFromDriver(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(putQuery).
		WithArgs("k", []byte(`"x"`)).
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type json"})

	err := store.Put(context.Background(), "k", json.RawMessage(`"x"`))

	assert.ErrorIs(t, err, ErrInvalidValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

const (
	ensureQuery = `INSERT INTO fabrics\.kv_store \(key, value\)\s+VALUES \(\$1, 'null'::jsonb\)\s+ON CONFLICT \(key\) DO NOTHING`
	lockQuery   = `SELECT value\s+FROM fabrics\.kv_store\s+WHERE key = \$1\s+FOR UPDATE`
	writeQuery  = `UPDATE fabrics\.kv_store\s+SET value = \$2, updated_at = CURRENT_TIMESTAMP\s+WHERE key = \$1`
)

func TestPostgresStore_Update_LocksRowAndWrites(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(ensureQuery).WithArgs("telegram:recipients").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockQuery).WithArgs("telegram:recipients").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[101]`)))
	mock.ExpectExec(writeQuery).WithArgs("telegram:recipients", []byte(`[101,202]`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "telegram:recipients", func(current json.RawMessage) (json.RawMessage, error) {
		assert.JSONEq(t, `[101]`, string(current))
		return json.RawMessage(`[101,202]`), nil
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_MissingKeyUnchangedRollsBack(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(ensureQuery).WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockQuery).WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`null`)))
	mock.ExpectRollback()

	seen := json.RawMessage(`"sentinel"`)
	err := store.Update(context.Background(), "k", func(current json.RawMessage) (json.RawMessage, error) {
		seen = current
		return nil, nil
	})

	require.NoError(t, err)
	assert.Nil(t, seen, "a freshly created row reads as absent")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_Errors(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	fnErr := errors.New("decode recipients")
	mock.ExpectBegin()
	mock.ExpectExec(ensureQuery).WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockQuery).WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[1]`)))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "k", func(json.RawMessage) (json.RawMessage, error) {
		return nil, fnErr
	})
	assert.ErrorIs(t, err, fnErr)

	dbErr := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(ensureQuery).WithArgs("k").WillReturnError(dbErr)
	mock.ExpectRollback()

	err = store.Update(context.Background(), "k", func(json.RawMessage) (json.RawMessage, error) {
		t.Fatal("fn must not run when the row cannot be prepared")
		return nil, nil
	})
	assert.ErrorIs(t, err, dbErr)

	assert.ErrorIs(t, store.Update(context.Background(), "", nil), ErrInvalidKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationFiles_Parse(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, identifier, err := source.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_kv_store", identifier)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS fabrics.kv_store")

	down, _, err := source.ReadDown(first)
	require.NoError(t, err)
	down.Close()

	_, err = source.Next(first)
	assert.ErrorIs(t, err, fs.ErrNotExist, "one migration so far")
}

func TestMigrate_DriverFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT CURRENT_DATABASE\(\)`).WillReturnError(errors.New("connection refused"))

	_, err = Migrate(db)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: migration driver")
}

func TestPostgresStore_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewPostgresStore(db)

	mock.ExpectClose()
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
