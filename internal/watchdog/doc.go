// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package watchdog runs a periodic validity check alongside a long-lived
// connection and tears it down in bounded time.
//
// A [Task] sleeps for its interval, asks a [Checker] for a [Verdict] and, when
// the verdict is [VerdictInvalid], asks its [Closer] to close the connection.
// A [Coordinator] owns at most one Task and guarantees that [Coordinator.Teardown]
// cancels it and waits for it at most once, for at most the configured timeout,
// no matter how many exit paths race to call it.
package watchdog
