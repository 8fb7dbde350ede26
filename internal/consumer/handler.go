// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"
)

// Handler processes inbound messages of an open connection. Handlers are
// composed with a Connection rather than embedded in it, so the same
// lifecycle and watchdog serve every message protocol.
type Handler interface {
	HandleMessage(ctx context.Context, conn *Connection, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *Connection, msg Message) error

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, conn *Connection, msg Message) error {
	return f(ctx, conn, msg)
}

// Echo returns a handler that sends every message back unchanged.
func Echo() Handler {
	return HandlerFunc(func(ctx context.Context, conn *Connection, msg Message) error {
		return conn.Send(ctx, msg.Type, msg.Data)
	})
}

// JSON decodes each message into T before calling fn. Payloads that do not
// decode end the connection with an unsupported-data status.
func JSON[T any](fn func(ctx context.Context, conn *Connection, v T) error) Handler {
	return HandlerFunc(func(ctx context.Context, conn *Connection, msg Message) error {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return fn(ctx, conn, v)
	})
}

// SendJSON encodes v and writes it as a text frame.
func (c *Connection) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("consumer: encode: %w", err)
	}
	return c.Send(ctx, websocket.MessageText, data)
}

// JSONEcho returns a JSON handler that sends each decoded document back.
func JSONEcho() Handler {
	return JSON(func(ctx context.Context, conn *Connection, v json.RawMessage) error {
		return conn.SendJSON(ctx, v)
	})
}
