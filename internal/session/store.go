// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session stores login sessions and checks whether a session still
// authorizes the connection that was opened with it.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a session key is unknown or expired.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalid is returned when a session exists but its auth hash no
	// longer matches the user's current one.
	ErrInvalid = errors.New("session: invalid")

	// ErrEmptyKey is returned for operations that need a session key.
	ErrEmptyKey = errors.New("session: key is required")
)

// Record is one login session.
type Record struct {
	Key       string    `json:"key"`
	UserID    string    `json:"user_id"`
	User      string    `json:"user"`
	AuthHash  string    `json:"auth_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists session records. Get returns ErrNotFound for expired
// records; Delete is idempotent.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores that need an external sweep to drop
// expired records.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// NewKey returns a fresh random session key.
func NewKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
