// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/metrics"
)

// DefaultTeardownTimeout bounds how long Teardown waits for a task.
const DefaultTeardownTimeout = 5 * time.Second

// TeardownResult is the outcome of one Teardown call. Every value is a
// success from the caller's point of view.
type TeardownResult int

const (
	// TeardownNoop means there was no task, or it had already terminated.
	TeardownNoop TeardownResult = iota
	// TeardownJoined means the task was cancelled and acknowledged in time.
	TeardownJoined
	// TeardownAbandoned means the bounded wait elapsed; the task was left to exit on its own.
	TeardownAbandoned
	// TeardownAlreadyDone means another caller performed the teardown.
	TeardownAlreadyDone
)

func (r TeardownResult) String() string {
	switch r {
	case TeardownNoop:
		return "noop"
	case TeardownJoined:
		return "joined"
	case TeardownAbandoned:
		return "abandoned"
	case TeardownAlreadyDone:
		return "already_done"
	default:
		return "unknown"
	}
}

// Coordinator owns the cancellation and bounded join of at most one Task.
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	task atomic.Pointer[Task]
	torn atomic.Bool
}

// NewCoordinator returns a coordinator that waits at most timeout for its
// task. A non-positive timeout selects DefaultTeardownTimeout.
func NewCoordinator(timeout time.Duration, logger *zerolog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTeardownTimeout
	}
	l := log.WithComponent("watchdog")
	if logger != nil {
		l = *logger
	}
	return &Coordinator{timeout: timeout, logger: l}
}

// Timeout returns the bounded wait used by Teardown.
func (c *Coordinator) Timeout() time.Duration { return c.timeout }

// Task returns the attached task, or nil.
func (c *Coordinator) Task() *Task { return c.task.Load() }

// Attach hands t to the coordinator. It fails if a task is already attached.
// If teardown has already started, t is cancelled and ErrTornDown returned,
// so a task attached late cannot leak.
func (c *Coordinator) Attach(t *Task) error {
	if t == nil {
		return ErrNilTask
	}
	if !c.task.CompareAndSwap(nil, t) {
		return ErrTaskAttached
	}
	// Pairs with the store in Teardown: one side always sees the other.
	if c.torn.Load() {
		t.Cancel(ErrTeardown)
		return ErrTornDown
	}
	return nil
}

// Teardown cancels the attached task and waits for it, bounded by the
// coordinator timeout and ctx. Only the first call does the work; concurrent
// and later calls return TeardownAlreadyDone immediately.
func (c *Coordinator) Teardown(ctx context.Context) TeardownResult {
	if !c.torn.CompareAndSwap(false, true) {
		metrics.IncWatchdogTeardown(TeardownAlreadyDone.String())
		return TeardownAlreadyDone
	}
	res := c.teardown(ctx)
	metrics.IncWatchdogTeardown(res.String())
	return res
}

func (c *Coordinator) teardown(ctx context.Context) TeardownResult {
	t := c.task.Load()
	if t == nil || t.Terminated() {
		return TeardownNoop
	}

	t.Cancel(ErrTeardown)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}

	select {
	case <-t.Done():
		return TeardownJoined
	case <-timer.C:
		c.logger.Warn().
			Str(log.FieldEvent, "watchdog.teardown_abandoned").
			Str(log.FieldWatchdog, t.Name()).
			Dur(log.FieldTimeout, c.timeout).
			Msg("watchdog did not stop in time, abandoning wait")
		return TeardownAbandoned
	case <-done:
		c.logger.Warn().
			Str(log.FieldEvent, "watchdog.teardown_abandoned").
			Str(log.FieldWatchdog, t.Name()).
			AnErr("cause", context.Cause(ctx)).
			Msg("teardown context ended before watchdog stopped, abandoning wait")
		return TeardownAbandoned
	}
}

// TornDown reports whether Teardown has been called.
func (c *Coordinator) TornDown() bool { return c.torn.Load() }
