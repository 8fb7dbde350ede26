// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"context"

	"github.com/ManuGH/wsguard/internal/auth"
)

// VerdictKind classifies the outcome of one validity check.
type VerdictKind int

const (
	VerdictValid VerdictKind = iota
	VerdictInvalid
	VerdictFailed
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictValid:
		return "valid"
	case VerdictInvalid:
		return "invalid"
	case VerdictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Verdict is the result of one check. Principal is set for VerdictValid,
// Err for VerdictFailed.
type Verdict struct {
	Kind      VerdictKind
	Principal *auth.Principal
	Err       error
}

// Valid reports a still-authorized principal.
func Valid(p *auth.Principal) Verdict { return Verdict{Kind: VerdictValid, Principal: p} }

// Invalid reports that the connection is no longer authorized.
func Invalid() Verdict { return Verdict{Kind: VerdictInvalid} }

// Failed reports that the check itself could not be completed.
func Failed(err error) Verdict { return Verdict{Kind: VerdictFailed, Err: err} }

// Checker decides whether a connection is still authorized. Check may block
// on I/O and must honor ctx cancellation.
type Checker interface {
	Check(ctx context.Context) Verdict
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Verdict

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) Verdict { return f(ctx) }

// CloseReason tells the connection why the watchdog wants it closed.
type CloseReason string

const (
	CloseSessionInvalid CloseReason = "session_invalid"
	CloseCheckFailed    CloseReason = "check_failed"
)

// Closer is the connection's close operation. It must be idempotent.
type Closer interface {
	RequestClose(ctx context.Context, reason CloseReason) error
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(ctx context.Context, reason CloseReason) error

// RequestClose implements Closer.
func (f CloserFunc) RequestClose(ctx context.Context, reason CloseReason) error { return f(ctx, reason) }
