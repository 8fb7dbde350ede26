// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
)

type principalKey struct{}

type sessionKey struct{}

// WithPrincipal adds the principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the principal from the context.
func PrincipalFromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if p, ok := val.(*Principal); ok {
		return p
	}
	return nil
}

// WithSessionKey binds the session key presented at handshake time to ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey{}, key)
}

// SessionKeyFromContext returns the session key bound to ctx, or "".
func SessionKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}
