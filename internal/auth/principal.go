// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Principal represents the authenticated identity bound to a connection.
type Principal struct {
	// ID is the stable, unique identifier for the user.
	ID string

	// User is the human-readable username (e.g., "bob").
	User string

	// Scopes are the permissions granted to this principal.
	Scopes []string
}

// NewPrincipal creates a Principal for user. The ID is derived from the
// username so it stays stable across sessions.
func NewPrincipal(user string, scopes []string) *Principal {
	hash := sha256.Sum256([]byte(user))
	return &Principal{
		// "u_" prefix keeps derived IDs apart from raw usernames in logs.
		ID:     "u_" + hex.EncodeToString(hash[:])[:16],
		User:   user,
		Scopes: scopes,
	}
}

// IsAnonymous reports whether p carries no identity.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.User == ""
}
