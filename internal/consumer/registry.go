// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import (
	"context"
	"sync"

	"nhooyr.io/websocket"
)

// Registry tracks live connections so they can be closed together on shutdown.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers c until it closes.
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()
}

// Remove forgets c.
func (r *Registry) Remove(c *Connection) {
	r.mu.Lock()
	delete(r.conns, c.ID())
	r.mu.Unlock()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// CloseAll closes every registered connection with a going-away status and
// waits until each one reached StateClosed or ctx is done.
func (r *Registry) CloseAll(ctx context.Context, reason string) error {
	conns := r.snapshot()
	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, reason)
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
