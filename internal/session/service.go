// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/auth"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/metrics"
)

// DefaultTTL is the lifetime of a new session.
const DefaultTTL = 14 * 24 * time.Hour

// Service mints, resolves and flushes sessions against a credential directory.
type Service struct {
	store  Store
	creds  auth.Credentials
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewService wires a Store to a Credentials directory. A ttl <= 0 selects DefaultTTL.
func NewService(store Store, creds auth.Credentials, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:  store,
		creds:  creds,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str(xglog.FieldComponent, "session").Logger(),
	}
}

// Store returns the backing store.
func (s *Service) Store() Store { return s.store }

// TTL returns the lifetime of new sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

// Login authenticates user and stores a new session bound to the user's
// current auth hash.
func (s *Service) Login(ctx context.Context, user, password string) (*Record, error) {
	p, hash, err := s.creds.Authenticate(ctx, user, password)
	if err != nil {
		metrics.IncSessionOp("login", "denied")
		return nil, err
	}
	now := s.now()
	rec := &Record{
		Key:       NewKey(),
		UserID:    p.ID,
		User:      p.User,
		AuthHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		metrics.IncSessionOp("login", "error")
		return nil, fmt.Errorf("session: login: %w", err)
	}
	metrics.IncSessionOp("login", "ok")
	s.logger.Info().
		Str(xglog.FieldEvent, "session.login").
		Str(xglog.FieldUserID, p.ID).
		Msg("session created")
	return rec, nil
}

// Logout flushes the session. Unknown keys are not an error.
func (s *Service) Logout(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.store.Delete(ctx, key); err != nil {
		metrics.IncSessionOp("logout", "error")
		return fmt.Errorf("session: logout: %w", err)
	}
	metrics.IncSessionOp("logout", "ok")
	s.logger.Info().Str(xglog.FieldEvent, "session.logout").Msg("session flushed")
	return nil
}

// Resolve returns the principal of a session that still matches its
// user's auth hash. A stale session is deleted and reported as ErrInvalid.
func (s *Service) Resolve(ctx context.Context, key string) (*auth.Principal, *Record, error) {
	if key == "" {
		return nil, nil, ErrEmptyKey
	}
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		metrics.IncSessionOp("resolve", resultFor(err))
		return nil, nil, err
	}

	current, err := s.creds.SessionAuthHash(ctx, rec.User)
	if errors.Is(err, auth.ErrUnknownUser) {
		s.flushStale(ctx, rec, "unknown_user")
		return nil, nil, ErrInvalid
	}
	if err != nil {
		metrics.IncSessionOp("resolve", "error")
		return nil, nil, fmt.Errorf("session: resolve auth hash: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(current), []byte(rec.AuthHash)) != 1 {
		s.flushStale(ctx, rec, "auth_hash_mismatch")
		return nil, nil, ErrInvalid
	}

	metrics.IncSessionOp("resolve", "ok")
	return &auth.Principal{ID: rec.UserID, User: rec.User}, rec, nil
}

func (s *Service) flushStale(ctx context.Context, rec *Record, reason string) {
	metrics.IncSessionOp("resolve", "invalid")
	if err := s.store.Delete(ctx, rec.Key); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldReason, reason).Msg("failed to flush stale session")
		return
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "session.flushed").
		Str(xglog.FieldUserID, rec.UserID).
		Str(xglog.FieldReason, reason).
		Msg("stale session flushed")
}

// ChangePassword verifies the old password of the session's user, sets the
// new one and returns a fresh session for the caller. Every other session of
// the user, including ones held by open connections, stops resolving.
func (s *Service) ChangePassword(ctx context.Context, key, oldPassword, newPassword string) (*Record, error) {
	_, rec, err := s.Resolve(ctx, key)
	if err != nil {
		metrics.IncSessionOp("password", "denied")
		return nil, err
	}
	if _, _, err := s.creds.Authenticate(ctx, rec.User, oldPassword); err != nil {
		metrics.IncSessionOp("password", "denied")
		return nil, err
	}
	if err := s.creds.SetPassword(ctx, rec.User, newPassword); err != nil {
		metrics.IncSessionOp("password", "error")
		return nil, fmt.Errorf("session: change password: %w", err)
	}
	_ = s.store.Delete(ctx, key)
	metrics.IncSessionOp("password", "ok")
	s.logger.Info().
		Str(xglog.FieldEvent, "session.password_changed").
		Str(xglog.FieldUserID, rec.UserID).
		Msg("password changed")
	return s.Login(ctx, rec.User, newPassword)
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "error"
	}
}
