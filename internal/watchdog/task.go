// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"context"
	"errors"
	"fmt"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/metrics"
	"github.com/ManuGH/wsguard/internal/telemetry"
)

const (
	// DefaultName tags the goroutine, logs and spans of a task.
	DefaultName = "SessionCheck"

	// DefaultInterval is the pause between two checks.
	DefaultInterval = 120 * time.Second
)

// State is the lifecycle state of a Task.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelled
	StateCompletedByRequest
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateCompletedByRequest:
		return "completed_by_request"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further checks will run.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateCompletedByRequest || s == StateFaulted
}

// FaultPolicy decides what a task does when the checker itself fails.
type FaultPolicy int

const (
	// FailOpen stops checking and leaves the connection open.
	FailOpen FaultPolicy = iota
	// FailClosed stops checking and requests the connection be closed.
	FailClosed
)

func (p FaultPolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// Options configures a Task. Zero values select the defaults.
type Options struct {
	Name        string
	Interval    time.Duration
	FaultPolicy FaultPolicy
	Logger      *zerolog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.Interval < 0 {
		return o, fmt.Errorf("watchdog: interval must be positive, got %s", o.Interval)
	}
	return o, nil
}

// Task is one running check cycle. It terminates exactly once: by
// cancellation, after requesting closure, or after a checker fault.
type Task struct {
	name     string
	interval time.Duration
	policy   FaultPolicy
	checker  Checker
	closer   Closer
	logger   zerolog.Logger
	tracer   trace.Tracer

	state  atomic.Int32
	checks atomic.Uint64
	cancel context.CancelCauseFunc
	done   chan struct{}

	// err is written before done is closed.
	err error
}

// Start launches a task bound to ctx. The task stops when ctx is cancelled,
// so it never outlives the connection context it was started from.
func Start(ctx context.Context, checker Checker, closer Closer, opts Options) (*Task, error) {
	if checker == nil {
		return nil, ErrNilChecker
	}
	if closer == nil {
		return nil, ErrNilCloser
	}
	if ctx == nil {
		return nil, fmt.Errorf("watchdog: start context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("watchdog: start: %w", err)
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	logger := log.WithComponentFromContext(ctx, "watchdog")
	if opts.Logger != nil {
		logger = log.WithContext(ctx, *opts.Logger)
	}

	t := &Task{
		name:     opts.Name,
		interval: opts.Interval,
		policy:   opts.FaultPolicy,
		checker:  checker,
		closer:   closer,
		logger:   logger.With().Str(log.FieldWatchdog, opts.Name).Logger(),
		tracer:   telemetry.Tracer("github.com/ManuGH/wsguard/internal/watchdog"),
		done:     make(chan struct{}),
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	t.cancel = cancel
	t.state.Store(int32(StateRunning))
	metrics.WatchdogActive.Inc()

	t.logger.Debug().
		Str(log.FieldEvent, "watchdog.started").
		Dur(log.FieldInterval, t.interval).
		Str("fault_policy", t.policy.String()).
		Msg("watchdog started")

	go pprof.Do(taskCtx, pprof.Labels("watchdog", t.name), t.run)
	return t, nil
}

// Name returns the diagnostic name of the task.
func (t *Task) Name() string { return t.name }

// Interval returns the pause between checks.
func (t *Task) Interval() time.Duration { return t.interval }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Checks returns the number of checks started so far.
func (t *Task) Checks() uint64 { return t.checks.Load() }

// Done is closed once the task has terminated.
func (t *Task) Done() <-chan struct{} { return t.done }

// Terminated reports whether Done is closed.
func (t *Task) Terminated() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the checker fault that ended the task, if any.
// It returns nil while the task is still running.
func (t *Task) Err() error {
	if !t.Terminated() {
		return nil
	}
	return t.err
}

// Cancel signals the task to stop. It does not wait; use Done for that.
func (t *Task) Cancel(cause error) {
	t.cancel(cause)
}

func (t *Task) run(ctx context.Context) {
	final, err := t.loop(ctx)
	t.finish(ctx, final, err)
}

func (t *Task) loop(ctx context.Context) (State, error) {
	for {
		timer := time.NewTimer(t.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return StateCancelled, nil
		case <-timer.C:
		}

		v := t.check(ctx)
		if ctx.Err() != nil {
			// A verdict computed while being cancelled is not trusted.
			return StateCancelled, nil
		}

		switch v.Kind {
		case VerdictValid:
			continue

		case VerdictInvalid:
			t.logger.Info().
				Str(log.FieldEvent, "watchdog.session_invalid").
				Msg("session no longer valid, closing connection")
			if err := t.closer.RequestClose(ctx, CloseSessionInvalid); err != nil {
				t.logger.Warn().Err(err).
					Str(log.FieldEvent, "watchdog.close_failed").
					Msg("close request failed")
			}
			return StateCompletedByRequest, nil

		default:
			err := v.Err
			if err == nil {
				err = errors.New("watchdog: check failed without error")
			}
			t.logger.Error().Err(err).
				Str(log.FieldEvent, "watchdog.check_failed").
				Str("fault_policy", t.policy.String()).
				Msg("session check failed, watchdog stopped")
			if t.policy == FailClosed {
				if cerr := t.closer.RequestClose(ctx, CloseCheckFailed); cerr != nil {
					t.logger.Warn().Err(cerr).
						Str(log.FieldEvent, "watchdog.close_failed").
						Msg("close request failed")
				}
			}
			return StateFaulted, err
		}
	}
}

// check runs one checker call, converting panics into VerdictFailed.
func (t *Task) check(ctx context.Context) (v Verdict) {
	seq := t.checks.Add(1)
	ctx, span := t.tracer.Start(ctx, "watchdog.check",
		trace.WithAttributes(telemetry.WatchdogAttributes(t.name, log.ConnIDFromContext(ctx), seq)...))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			v = Failed(CheckPanicError{Value: r})
		}
		span.SetAttributes(attribute.String(telemetry.WatchdogVerdictKey, v.Kind.String()))
		if v.Err != nil {
			span.RecordError(v.Err)
			span.SetStatus(codes.Error, v.Err.Error())
		}
		span.End()
		metrics.ObserveWatchdogCheck(v.Kind.String(), time.Since(start))
	}()

	return t.checker.Check(ctx)
}

func (t *Task) finish(ctx context.Context, s State, err error) {
	t.err = err
	t.state.Store(int32(s))

	ev := t.logger.Debug()
	if s == StateCancelled {
		ev = ev.AnErr("cause", context.Cause(ctx))
	}
	ev.Str(log.FieldEvent, "watchdog.stopped").
		Str(log.FieldNewState, s.String()).
		Uint64("checks", t.checks.Load()).
		Msg("watchdog stopped")

	t.cancel(nil)
	metrics.WatchdogActive.Dec()
	metrics.IncWatchdogExit(s.String())
	close(t.done)
}
