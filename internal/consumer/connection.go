// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/ManuGH/wsguard/internal/auth"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/metrics"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

// Options configures a Connection.
type Options struct {
	// ID overrides the generated connection id.
	ID string
	// Checker decides whether the connection is still authorized. Required.
	Checker watchdog.Checker
	// Watchdog configures the session check task started on Accept.
	Watchdog watchdog.Options
	// TeardownTimeout bounds the wait for the watchdog during shutdown.
	TeardownTimeout time.Duration
	// Logger overrides the component logger.
	Logger *zerolog.Logger
	// OnClosed runs once after the connection reached StateClosed.
	OnClosed func(*Connection)
	// MessageRate limits inbound messages per second. Zero disables the
	// limit; messages over budget are dropped.
	MessageRate  rate.Limit
	MessageBurst int
}

// Connection owns one accepted socket and its session watchdog.
//
// Accept starts the watchdog, Serve runs the receive loop, and every way the
// connection can end (peer disconnect, transport error, server close or a
// watchdog close request) converges on a single shutdown that tears the
// watchdog down before the state becomes StateClosed.
type Connection struct {
	id   string
	opts Options

	state    atomic.Int32
	trigger  atomic.Int32
	teardown atomic.Int32

	mu        sync.Mutex
	transport Transport
	ctx       context.Context
	cancel    context.CancelCauseFunc

	coord     *watchdog.Coordinator
	limiter   *rate.Limiter
	principal atomic.Pointer[auth.Principal]
	accepted  atomic.Bool

	closeStarted atomic.Bool
	shutdownOnce sync.Once
	closed       chan struct{}

	logger zerolog.Logger
}

// New returns a connection in StateConnecting.
func New(opts Options) *Connection {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = xglog.WithComponent("consumer")
	}
	logger = logger.With().Str(xglog.FieldConnID, id).Logger()

	c := &Connection{
		id:     id,
		opts:   opts,
		closed: make(chan struct{}),
		logger: logger,
	}
	c.coord = watchdog.NewCoordinator(opts.TeardownTimeout, &c.logger)
	if opts.MessageRate > 0 {
		burst := opts.MessageBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(opts.MessageRate, burst)
	}
	return c
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Trigger returns what started the shutdown, or TriggerNone.
func (c *Connection) Trigger() Trigger { return Trigger(c.trigger.Load()) }

// TeardownResult returns how the watchdog was released. It is meaningful
// once Done is closed.
func (c *Connection) TeardownResult() watchdog.TeardownResult {
	return watchdog.TeardownResult(c.teardown.Load())
}

// Done is closed once the connection reached StateClosed.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Watchdog returns the session check task, or nil before Accept.
func (c *Connection) Watchdog() *watchdog.Task { return c.coord.Task() }

// Principal returns the principal from the latest valid check, if any.
func (c *Connection) Principal() *auth.Principal { return c.principal.Load() }

// Context returns the connection-scoped context. It is canceled on shutdown.
func (c *Connection) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Logger returns the connection logger.
func (c *Connection) Logger() *zerolog.Logger { return &c.logger }

func (c *Connection) transition(from, to State) bool {
	if !CanTransition(from, to) {
		return false
	}
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.logger.Debug().
		Str(xglog.FieldEvent, "connection.state").
		Str(xglog.FieldOldState, from.String()).
		Str(xglog.FieldNewState, to.String()).
		Msg("connection state changed")
	return true
}

// beginClosing moves Connecting or Open to Closing. It reports whether this
// call performed the move.
func (c *Connection) beginClosing() bool {
	for {
		s := c.State()
		switch s {
		case StateConnecting, StateOpen:
			if c.transition(s, StateClosing) {
				return true
			}
		default:
			return false
		}
	}
}

func (c *Connection) setTrigger(t Trigger) {
	c.trigger.CompareAndSwap(int32(TriggerNone), int32(t))
}

// Accept binds the transport, derives the connection context from ctx and
// starts the session watchdog. If the watchdog cannot be started the
// handshake is aborted: the transport is closed with an internal-error status
// and the connection ends in StateClosed.
func (c *Connection) Accept(ctx context.Context, transport Transport) error {
	if transport == nil {
		return ErrNilTransport
	}
	switch c.State() {
	case StateConnecting:
	case StateClosing, StateClosed:
		c.mu.Lock()
		bound := c.transport != nil
		c.mu.Unlock()
		if !bound {
			return ErrConnectionClosed
		}
		return ErrAlreadyAccepted
	default:
		return ErrAlreadyAccepted
	}

	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return ErrAlreadyAccepted
	}
	c.transport = transport
	connCtx := xglog.ContextWithConnID(ctx, c.id)
	c.ctx, c.cancel = context.WithCancelCause(connCtx)
	c.mu.Unlock()

	if !c.transition(StateConnecting, StateOpen) {
		// Closed before the handshake finished.
		c.closeTransport(websocket.StatusGoingAway, "connection closed")
		c.shutdown(context.Background(), TriggerHandshake, ErrConnectionClosed)
		return ErrConnectionClosed
	}

	task, err := c.startWatchdog()
	if err == nil {
		err = c.coord.Attach(task)
	}
	if err != nil {
		c.logger.Error().Err(err).
			Str(xglog.FieldEvent, "connection.handshake_aborted").
			Msg("failed to start session watchdog")
		c.beginClosing()
		c.setTrigger(TriggerHandshake)
		c.closeTransport(websocket.StatusInternalError, "internal error")
		c.shutdown(context.Background(), TriggerHandshake, err)
		return fmt.Errorf("%w: %w", ErrHandshakeAborted, err)
	}

	c.accepted.Store(true)
	metrics.ConnectionsActive.Inc()
	c.logger.Info().
		Str(xglog.FieldEvent, "connection.accepted").
		Str(xglog.FieldWatchdog, task.Name()).
		Dur(xglog.FieldInterval, task.Interval()).
		Msg("connection accepted")
	return nil
}

func (c *Connection) startWatchdog() (*watchdog.Task, error) {
	if c.opts.Checker == nil {
		return nil, ErrNilChecker
	}
	checker := watchdog.CheckerFunc(func(ctx context.Context) watchdog.Verdict {
		v := c.opts.Checker.Check(ctx)
		if v.Kind == watchdog.VerdictValid && v.Principal != nil {
			c.principal.Store(v.Principal)
		}
		return v
	})
	return watchdog.Start(c.Context(), checker, c, c.opts.Watchdog)
}

// Serve runs the receive loop until the connection ends and returns nil for
// an orderly end. Every exit path runs the shutdown before returning.
func (c *Connection) Serve(h Handler) error {
	c.mu.Lock()
	transport, ctx := c.transport, c.ctx
	c.mu.Unlock()
	if transport == nil {
		return ErrNotAccepted
	}

	for {
		typ, data, err := transport.Read(ctx)
		if err != nil {
			if c.isDisconnect(err) {
				c.HandleDisconnect(websocket.CloseStatus(err))
				return nil
			}
			c.HandleError(fmt.Errorf("consumer: read: %w", err))
			return err
		}
		if err := c.HandleMessage(ctx, h, Message{Type: typ, Data: data}); err != nil {
			c.HandleError(err)
			return err
		}
	}
}

func (c *Connection) isDisconnect(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	// Reads fail once we closed the transport ourselves.
	return c.State() != StateOpen
}

// HandleMessage runs one step of the message loop. Messages that arrive once
// the connection is no longer open are dropped.
func (c *Connection) HandleMessage(ctx context.Context, h Handler, msg Message) error {
	if c.State() != StateOpen {
		metrics.IncMessage("dropped")
		return nil
	}
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.IncMessage("rate_limited")
		return nil
	}
	if h == nil {
		metrics.IncMessage("ignored")
		return nil
	}
	if err := h.HandleMessage(ctx, c, msg); err != nil {
		metrics.IncMessage("error")
		return err
	}
	metrics.IncMessage("handled")
	return nil
}

// HandleDisconnect records a peer disconnect and shuts the connection down.
// It returns once the connection is closed.
func (c *Connection) HandleDisconnect(status websocket.StatusCode) {
	c.logger.Debug().
		Str(xglog.FieldEvent, "connection.disconnect").
		Int("status", int(status)).
		Msg("peer disconnected")
	c.shutdown(context.Background(), TriggerDisconnect, nil)
}

// HandleError closes the transport with an error status and shuts the
// connection down. It returns once the connection is closed.
func (c *Connection) HandleError(err error) {
	status := websocket.StatusInternalError
	if errors.Is(err, ErrDecode) {
		status = websocket.StatusUnsupportedData
	}
	if c.beginClosing() {
		c.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "connection.error").
			Msg("closing connection after error")
	}
	c.setTrigger(TriggerError)
	c.closeTransport(status, "internal error")
	c.shutdown(context.Background(), TriggerError, err)
}

// RequestClose implements watchdog.Closer. It closes the transport and
// leaves the teardown to the receive loop.
func (c *Connection) RequestClose(_ context.Context, reason watchdog.CloseReason) error {
	switch reason {
	case watchdog.CloseSessionInvalid:
		return c.closeWith(TriggerSessionInvalid, StatusSessionInvalid, "session invalid")
	case watchdog.CloseCheckFailed:
		return c.closeWith(TriggerCheckFailed, websocket.StatusPolicyViolation, "session check failed")
	default:
		c.logger.Warn().
			Str(xglog.FieldEvent, "connection.close_unknown_reason").
			Str(xglog.FieldReason, string(reason)).
			Msg("unrecognized close reason")
		return c.closeWith(TriggerServerClose, websocket.StatusInternalError, "internal error")
	}
}

// Close closes the connection from the server side. A connection that was
// never accepted is shut down directly.
func (c *Connection) Close(status websocket.StatusCode, reason string) error {
	return c.closeWith(TriggerServerClose, status, reason)
}

func (c *Connection) closeWith(trigger Trigger, status websocket.StatusCode, reason string) error {
	prev := c.State()
	if !c.beginClosing() {
		return nil
	}
	c.setTrigger(trigger)
	c.logger.Info().
		Str(xglog.FieldEvent, "connection.close").
		Str(xglog.FieldReason, trigger.String()).
		Int("status", int(status)).
		Msg("closing connection")

	if prev == StateConnecting {
		c.mu.Lock()
		bound := c.transport != nil
		c.mu.Unlock()
		if !bound {
			c.shutdown(context.Background(), trigger, nil)
			return nil
		}
	}
	return c.closeTransport(status, reason)
}

func (c *Connection) closeTransport(status websocket.StatusCode, reason string) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return nil
	}
	// Only the first caller closes. Later callers do not wait for it, so a
	// hung Close cannot hold up shutdown.
	if !c.closeStarted.CompareAndSwap(false, true) {
		return nil
	}
	return transport.Close(status, reason)
}

// shutdown is the single convergence point of every termination path.
// Concurrent callers block until the first one finished.
func (c *Connection) shutdown(ctx context.Context, trigger Trigger, cause error) {
	c.shutdownOnce.Do(func() {
		c.beginClosing()
		c.setTrigger(trigger)

		result := c.coord.Teardown(ctx)
		c.teardown.Store(int32(result))

		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			if cause == nil {
				cause = ErrConnectionClosed
			}
			cancel(cause)
		}
		// Release the socket when the peer went away first.
		c.closeTransport(websocket.StatusNormalClosure, "")

		c.transition(StateClosing, StateClosed)
		if c.accepted.Load() {
			metrics.ConnectionsActive.Dec()
		}
		metrics.IncConnectionClosed(c.Trigger().String())
		c.logger.Info().
			Str(xglog.FieldEvent, "connection.closed").
			Str(xglog.FieldReason, c.Trigger().String()).
			Str("teardown", result.String()).
			Msg("connection closed")
		close(c.closed)

		if c.opts.OnClosed != nil {
			c.opts.OnClosed(c)
		}
	})
	<-c.closed
}

// Send writes one frame. It fails with ErrConnectionClosed once the
// connection left StateOpen.
func (c *Connection) Send(ctx context.Context, typ websocket.MessageType, data []byte) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	return transport.Write(ctx, typ, data)
}

// SendText writes a text frame.
func (c *Connection) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, websocket.MessageText, []byte(text))
}
