// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// DefaultSessionCookie is the cookie carrying the session key.
const DefaultSessionCookie = "wsguard_session"

// ExtractSessionToken retrieves the session key from the request.
// 1. Cookie: <cookieName>
// 2. Authorization: Bearer <key> (non-browser clients)
func ExtractSessionToken(r *http.Request, cookieName string) string {
	if r == nil {
		return ""
	}
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
