// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/wsguard/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

// SQLiteStore keeps sessions in a SQLite database.
type SQLiteStore struct {
	DB *sql.DB
}

// NewSQLiteStore opens dbPath and migrates the schema.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sqlite.Open(ctx, dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{DB: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		auth_hash TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		expires_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at_ms);
	`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Key == "" {
		return ErrEmptyKey
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (session_key, user_id, user_name, auth_hash, created_at_ms, expires_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			auth_hash = excluded.auth_hash,
			expires_at_ms = excluded.expires_at_ms`,
		rec.Key, rec.UserID, rec.User, rec.AuthHash, rec.CreatedAt.UnixMilli(), expiresMillis(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("session: sqlite save: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	var (
		rec                Record
		createdMs, expires int64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT session_key, user_id, user_name, auth_hash, created_at_ms, expires_at_ms
		FROM sessions WHERE session_key = ? AND expires_at_ms > ?`,
		key, time.Now().UnixMilli()).
		Scan(&rec.Key, &rec.UserID, &rec.User, &rec.AuthHash, &createdMs, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: sqlite get: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdMs)
	if expires != neverExpires {
		rec.ExpiresAt = time.UnixMilli(expires)
	}
	return &rec, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM sessions WHERE session_key = ?", key); err != nil {
		return fmt.Errorf("session: sqlite delete: %w", err)
	}
	return nil
}

// PurgeExpired implements Purger.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at_ms <= ?", now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("session: sqlite purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.DB.Close() }

// neverExpires stands in for a zero ExpiresAt so range queries stay simple.
const neverExpires int64 = 1<<63 - 1

func expiresMillis(t time.Time) int64 {
	if t.IsZero() {
		return neverExpires
	}
	return t.UnixMilli()
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Purger = (*SQLiteStore)(nil)
	_ Purger = (*MemoryStore)(nil)
)
