package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/sectorinv/internal/kvstore"
)

// Dialect holds the statements that differ between SQL engines.
type Dialect struct {
	Name   string
	Upsert string
}

var (
	SQLite = Dialect{
		Name: "sqlite",
		Upsert: `
			INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, datetime('now'))
			ON CONFLICT(entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at
		`,
	}
	MySQL = Dialect{
		Name: "mysql",
		Upsert: `
			INSERT INTO kv_entries (entry_key, entry_value) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE entry_value = VALUES(entry_value)
		`,
	}
)

// KVStore stores values in the kv_entries table created by the db migrations.
type KVStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewKVStore(db *sql.DB, dialect Dialect) *KVStore {
	return &KVStore{db: db, dialect: dialect}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT entry_value FROM kv_entries WHERE entry_key = ?
	`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert, key, value); err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_entries WHERE entry_key = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	return nil
}
