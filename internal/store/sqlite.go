package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV implements KV on a single-file SQLite database so reservations
// survive process restarts. Expiry is lazy on read plus an explicit purge.
type SQLiteKV struct {
	db *sql.DB
}

var _ KV = (*SQLiteKV)(nil)

// OpenSQLite opens (creating if needed) the KV database at path.
func OpenSQLite(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open kv database: %w", err)
	}

	// Single writer; the pipeline is sequential and the admin wipe is rare.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// Get returns the value for key if present and unexpired.
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64

	row := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv get: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		// Lapsed lease; clear it so the key reads as absent from now on.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return "", false, nil
	}

	return value, true, nil
}

// Put writes a value with the given TTL, replacing any existing entry.
func (s *SQLiteKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// ListPrefix returns all live keys with the given prefix.
func (s *SQLiteKV) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeLike(prefix) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' AND expires_at > ?
	`, pattern, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kv list scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PurgeExpired removes lapsed entries; called opportunistically between
// pipeline passes.
func (s *SQLiteKV) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("kv purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
