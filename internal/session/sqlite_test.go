// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, newSQLiteStore(t))
}

func TestSQLiteStore_SchemaVersion(t *testing.T) {
	store := newSQLiteStore(t)
	var v int
	require.NoError(t, store.DB.QueryRow("PRAGMA user_version").Scan(&v))
	assert.Equal(t, sqliteSchemaVersion, v)
}

func TestSQLiteStore_ReopenKeepsSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, &Record{Key: "persist", User: "alice", CreatedAt: time.Now()}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestSQLiteStore_PurgeExpired(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &Record{Key: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, &Record{Key: "fresh", ExpiresAt: now.Add(time.Hour)}))

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
}
