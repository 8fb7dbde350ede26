// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import (
	"context"
	"errors"
	"sync"

	"nhooyr.io/websocket"
)

// fakeTransport is an in-memory Transport. Frames pushed with deliver are
// returned by Read; Close and peerClose end the read side.
type fakeTransport struct {
	in     chan Message
	closed chan struct{}
	once   sync.Once

	mu          sync.Mutex
	closeCode   websocket.StatusCode
	closeReason string
	closeCalls  int
	writes      []Message
	readErr     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan Message, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case m := <-f.in:
		return m.Type, m.Data, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, websocket.CloseError{Code: f.closeCode, Reason: f.closeReason}
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(_ context.Context, typ websocket.MessageType, p []byte) error {
	select {
	case <-f.closed:
		return errors.New("fake: write on closed transport")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, Message{Type: typ, Data: append([]byte(nil), p...)})
	return nil
}

func (f *fakeTransport) Close(code websocket.StatusCode, reason string) error {
	f.mu.Lock()
	f.closeCalls++
	first := f.closeCode == 0 && f.readErr == nil
	if first {
		f.closeCode, f.closeReason = code, reason
	}
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) deliver(typ websocket.MessageType, data string) {
	f.in <- Message{Type: typ, Data: []byte(data)}
}

// peerClose simulates the remote side closing with code.
func (f *fakeTransport) peerClose(code websocket.StatusCode) {
	f.mu.Lock()
	if f.closeCode == 0 {
		f.closeCode = code
	}
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
}

// fail makes the next Read return err.
func (f *fakeTransport) fail(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
}

func (f *fakeTransport) CloseCode() websocket.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func (f *fakeTransport) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func (f *fakeTransport) Writes() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.writes...)
}
