// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"errors"

	"github.com/ManuGH/wsguard/internal/auth"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

// Checker re-validates the session key stored in the connection context.
type Checker struct {
	svc *Service
}

// NewChecker returns a watchdog.Checker backed by svc.
func NewChecker(svc *Service) *Checker {
	return &Checker{svc: svc}
}

// Check implements watchdog.Checker. Missing, expired, flushed and stale
// sessions are Invalid; store failures are Failed.
func (c *Checker) Check(ctx context.Context) watchdog.Verdict {
	key := auth.SessionKeyFromContext(ctx)
	if key == "" {
		return watchdog.Invalid()
	}
	p, _, err := c.svc.Resolve(ctx, key)
	switch {
	case err == nil:
		return watchdog.Valid(p)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalid), errors.Is(err, ErrEmptyKey):
		return watchdog.Invalid()
	default:
		return watchdog.Failed(err)
	}
}

var _ watchdog.Checker = (*Checker)(nil)
