// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import (
	"context"

	"nhooyr.io/websocket"
)

// Transport is the message-level surface of an accepted socket.
// *websocket.Conn satisfies it.
type Transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Close codes used by the connection in addition to the RFC 6455 ones.
const (
	// StatusSessionInvalid tells the peer its session no longer authorizes the connection.
	StatusSessionInvalid websocket.StatusCode = 4401
)

// Message is one inbound frame.
type Message struct {
	Type websocket.MessageType
	Data []byte
}

// Text returns the payload as a string.
func (m Message) Text() string { return string(m.Data) }

var _ Transport = (*websocket.Conn)(nil)
