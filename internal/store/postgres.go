package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Predefined errors for store operations
var (
	ErrKeyNotFound  = errors.New("store: key not found")
	ErrInvalidKey   = errors.New("store: key must not be empty")
	ErrInvalidValue = errors.New("store: value is not valid JSON")
)

// PostgresStore implements KeyValueStore on a single JSONB table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}
	query := `
		SELECT value
		FROM fabrics.kv_store
		WHERE key = $1;
	`
	var value []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("store: Get failed to scan row: %w", err)
	}
	return json.RawMessage(value), nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	query := `
		INSERT INTO fabrics.kv_store (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;
	`
	result, err := s.db.ExecContext(ctx, query, key, []byte(value))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" { // invalid_text_representation
			return ErrInvalidValue
		}
		return fmt.Errorf("store: Put failed to execute upsert: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("store: Put affected no rows for key %q", key)
	}
	return nil
}

// Update locks the row for key inside a transaction, so concurrent updaters from any
// replica are applied one after another. A missing key is created as JSON null
// first and rolled back when fn leaves it unchanged.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: Update failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ensure := `
		INSERT INTO fabrics.kv_store (key, value)
		VALUES ($1, 'null'::jsonb)
		ON CONFLICT (key) DO NOTHING;
	`
	if _, err = tx.ExecContext(ctx, ensure, key); err != nil {
		return fmt.Errorf("store: Update failed to ensure row: %w", err)
	}

	lock := `
		SELECT value
		FROM fabrics.kv_store
		WHERE key = $1
		FOR UPDATE;
	`
	var raw []byte
	if err = tx.QueryRowContext(ctx, lock, key).Scan(&raw); err != nil {
		return fmt.Errorf("store: Update failed to lock row: %w", err)
	}
	var current json.RawMessage
	if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		current = json.RawMessage(raw)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return tx.Rollback()
	}
	if !json.Valid(next) {
		return ErrInvalidValue
	}

	write := `
		UPDATE fabrics.kv_store
		SET value = $2, updated_at = CURRENT_TIMESTAMP
		WHERE key = $1;
	`
	if _, err = tx.ExecContext(ctx, write, key, []byte(next)); err != nil {
		return fmt.Errorf("store: Update failed to write value: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: Update failed to commit: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
