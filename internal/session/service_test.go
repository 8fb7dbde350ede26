// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuGH/wsguard/internal/auth"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

func newService(t *testing.T) (*Service, *auth.MemoryCredentials, *MemoryStore) {
	t.Helper()
	creds, err := auth.NewMemoryCredentials("test-secret")
	require.NoError(t, err)
	creds.WithCost(bcrypt.MinCost)
	require.NoError(t, creds.SetPassword(context.Background(), "alice", "s3cret"))

	store := NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, creds, time.Hour, zerolog.Nop()), creds, store
}

func TestService_LoginResolve(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	rec, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Key)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, time.Minute)

	p, got, err := svc.Resolve(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User)
	assert.Equal(t, auth.NewPrincipal("alice", nil).ID, p.ID)
	assert.Equal(t, rec.Key, got.Key)
}

func TestService_LoginDenied(t *testing.T) {
	svc, _, store := newService(t)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "mallory", "s3cret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Zero(t, store.Len())
}

func TestService_Logout(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	rec, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, rec.Key))
	require.NoError(t, svc.Logout(ctx, rec.Key))
	assert.ErrorIs(t, svc.Logout(ctx, ""), ErrEmptyKey)

	_, _, err = svc.Resolve(ctx, rec.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_PasswordChangeInvalidatesOtherSessions(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	caller, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	other, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, caller.Key, "wrong", "n3w")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	fresh, err := svc.ChangePassword(ctx, caller.Key, "s3cret", "n3w")
	require.NoError(t, err)
	assert.NotEqual(t, caller.Key, fresh.Key)

	_, _, err = svc.Resolve(ctx, fresh.Key)
	require.NoError(t, err)

	_, _, err = svc.Resolve(ctx, caller.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Resolve(ctx, other.Key)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = store.Get(ctx, other.Key)
	assert.ErrorIs(t, err, ErrNotFound, "stale session is flushed")
}

func TestService_ResolveUnknownUser(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &Record{Key: "ghost", User: "nobody", ExpiresAt: time.Now().Add(time.Hour)}))

	_, _, err := svc.Resolve(ctx, "ghost")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, store.Len())
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f failingStore) Get(context.Context, string) (*Record, error) { return nil, f.err }

func TestChecker_Verdicts(t *testing.T) {
	svc, creds, _ := newService(t)
	ctx := context.Background()
	rec, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	checker := NewChecker(svc)

	t.Run("valid session", func(t *testing.T) {
		v := checker.Check(auth.WithSessionKey(ctx, rec.Key))
		require.Equal(t, watchdog.VerdictValid, v.Kind)
		assert.Equal(t, "alice", v.Principal.User)
	})

	t.Run("no session key", func(t *testing.T) {
		assert.Equal(t, watchdog.VerdictInvalid, checker.Check(ctx).Kind)
	})

	t.Run("unknown session", func(t *testing.T) {
		assert.Equal(t, watchdog.VerdictInvalid, checker.Check(auth.WithSessionKey(ctx, "nope")).Kind)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("store down")
		broken := NewChecker(NewService(failingStore{MemoryStore: NewMemoryStore(0), err: boom}, creds, time.Hour, zerolog.Nop()))
		v := broken.Check(auth.WithSessionKey(ctx, rec.Key))
		assert.Equal(t, watchdog.VerdictFailed, v.Kind)
		assert.ErrorIs(t, v.Err, boom)
	})

	t.Run("password rotated", func(t *testing.T) {
		require.NoError(t, creds.SetPassword(ctx, "alice", "rotated"))
		assert.Equal(t, watchdog.VerdictInvalid, checker.Check(auth.WithSessionKey(ctx, rec.Key)).Kind)
	})
}

func TestSweeper_SweepOnce(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &Record{Key: "a", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, &Record{Key: "b", ExpiresAt: now.Add(time.Minute)}))

	s := &Sweeper{Purger: store, Interval: time.Minute, Logger: zerolog.Nop()}
	s.now = func() time.Time { return now }
	assert.Equal(t, 1, s.SweepOnce(ctx))
	assert.Equal(t, 1, store.Len())
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		(&Sweeper{Purger: store, Interval: time.Millisecond, Logger: zerolog.Nop()}).Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	// Disabled sweepers return immediately.
	(&Sweeper{Purger: store}).Run(context.Background())
}
