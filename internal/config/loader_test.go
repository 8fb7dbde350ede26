// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv(EnvSecretKey, "k")

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Default()
	want.Auth.SecretKey = "k"
	want.Version = "v1.2.3"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 120*time.Second, cfg.Session.CheckInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, "wsguard.yaml", `
server:
  listenAddr: ":7000"
session:
  checkInterval: 30s
  backend: sqlite
  sqlitePath: /var/lib/wsguard/sessions.db
auth:
  secretKey: from-file
  users:
    - name: alice
      password: pw
`)
	t.Setenv(EnvCheckInterval, "2")
	t.Setenv(EnvCheckFailClosed, "true")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Session.CheckInterval, "ENV wins over file")
	assert.True(t, cfg.Session.CheckFailClosed)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, "from-file", cfg.Auth.SecretKey)
	assert.Equal(t, []UserSeed{{Name: "alice", Password: "pw"}}, cfg.Auth.Users)
	assert.Equal(t, DefaultTeardownTimeout, cfg.Session.TeardownTimeout, "unset keys keep defaults")
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoad_UsersFromEnv(t *testing.T) {
	t.Setenv(EnvSecretKey, "k")
	t.Setenv(EnvUsers, "alice:one, bob:two:with:colons")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, []UserSeed{
		{Name: "alice", Password: "one"},
		{Name: "bob", Password: "two:with:colons"},
	}, cfg.Auth.Users)

	t.Setenv(EnvUsers, "carol")
	_, err = NewLoader("", "").Load()
	assert.ErrorContains(t, err, EnvUsers)
	assert.NotContains(t, err.Error(), "one")
}

func TestLoad_StrictFile(t *testing.T) {
	t.Setenv(EnvSecretKey, "k")

	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown key", file: "c.yaml", body: "session:\n  checkIntervall: 5s\n"},
		{name: "multiple documents", file: "c.yaml", body: "log:\n  level: info\n---\nlog:\n  level: debug\n"},
		{name: "wrong extension", file: "c.json", body: "{}"},
		{name: "bad duration", file: "c.yaml", body: "session:\n  checkInterval: often\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.file, tt.body), "").Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvSecretKey, "k")
	cfg, err := NewLoader(writeConfig(t, "empty.yml", ""), "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultCheckInterval, cfg.Session.CheckInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
	assert.ErrorContains(t, err, "read file")
}
