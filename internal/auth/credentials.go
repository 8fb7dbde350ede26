// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnknownUser is returned when a user does not exist in the directory.
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmptySecret is returned when a directory is created without a secret key.
	ErrEmptySecret = errors.New("secret key is required")
)

// Credentials resolves users and the session auth hash derived from their
// current password. Rotating a password changes the hash, which invalidates
// every session minted before the change.
type Credentials interface {
	// Authenticate verifies the password and returns the principal together
	// with the session auth hash to store in the new session.
	Authenticate(ctx context.Context, user, password string) (*Principal, string, error)

	// SessionAuthHash returns the current auth hash for user.
	SessionAuthHash(ctx context.Context, user string) (string, error)

	// SetPassword creates the user or replaces its password.
	SetPassword(ctx context.Context, user, password string) error
}

type account struct {
	principal    *Principal
	passwordHash []byte
}

// MemoryCredentials is an in-process user directory.
type MemoryCredentials struct {
	secret []byte
	cost   int

	mu       sync.RWMutex
	accounts map[string]*account
}

// NewMemoryCredentials creates a directory whose session hashes are keyed by secret.
func NewMemoryCredentials(secret string) (*MemoryCredentials, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &MemoryCredentials{
		secret:   []byte(secret),
		cost:     bcrypt.DefaultCost,
		accounts: make(map[string]*account),
	}, nil
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (c *MemoryCredentials) WithCost(cost int) *MemoryCredentials {
	c.cost = cost
	return c
}

// SetPassword implements Credentials.
func (c *MemoryCredentials) SetPassword(_ context.Context, user, password string) error {
	if user == "" {
		return fmt.Errorf("set password: %w", ErrUnknownUser)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[user]; ok {
		acc.passwordHash = hash
		return nil
	}
	c.accounts[user] = &account{
		principal:    NewPrincipal(user, nil),
		passwordHash: hash,
	}
	return nil
}

// Authenticate implements Credentials.
func (c *MemoryCredentials) Authenticate(_ context.Context, user, password string) (*Principal, string, error) {
	c.mu.RLock()
	acc, ok := c.accounts[user]
	var hash []byte
	if ok {
		hash = acc.passwordHash
	}
	c.mu.RUnlock()

	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	return acc.principal, c.authHash(hash), nil
}

// SessionAuthHash implements Credentials.
func (c *MemoryCredentials) SessionAuthHash(_ context.Context, user string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.accounts[user]
	if !ok {
		return "", ErrUnknownUser
	}
	return c.authHash(acc.passwordHash), nil
}

// Principal returns the principal for user.
func (c *MemoryCredentials) Principal(user string) (*Principal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.accounts[user]
	if !ok {
		return nil, false
	}
	return acc.principal, true
}

func (c *MemoryCredentials) authHash(passwordHash []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("session-auth-hash:"))
	mac.Write(passwordHash)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Credentials = (*MemoryCredentials)(nil)
