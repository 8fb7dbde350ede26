// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNilChecker is returned when a task is started without a checker.
	ErrNilChecker = errors.New("watchdog: checker is required")

	// ErrNilCloser is returned when a task is started without a closer.
	ErrNilCloser = errors.New("watchdog: closer is required")

	// ErrNilTask is returned when a nil task is attached.
	ErrNilTask = errors.New("watchdog: task is nil")

	// ErrTaskAttached is returned when a coordinator already owns a task.
	ErrTaskAttached = errors.New("watchdog: task already attached")

	// ErrTornDown is returned when a task is attached after teardown started.
	ErrTornDown = errors.New("watchdog: coordinator already torn down")

	// ErrTeardown is the cancellation cause used by Coordinator.Teardown.
	ErrTeardown = errors.New("watchdog: teardown")
)

// CheckPanicError wraps a value recovered from a panicking checker.
type CheckPanicError struct {
	Value any
}

func (e CheckPanicError) Error() string {
	return fmt.Sprintf("watchdog: checker panicked: %v", e.Value)
}

// IsTeardown reports whether ctx was cancelled by a coordinator teardown.
func IsTeardown(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrTeardown)
}
