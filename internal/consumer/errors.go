// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

import "errors"

var (
	// ErrNilTransport is returned when Accept is called without a transport.
	ErrNilTransport = errors.New("consumer: transport is required")

	// ErrNilChecker is returned when a connection is accepted without a validity checker.
	ErrNilChecker = errors.New("consumer: validity checker is required")

	// ErrAlreadyAccepted is returned when Accept is called more than once.
	ErrAlreadyAccepted = errors.New("consumer: connection already accepted")

	// ErrNotAccepted is returned when Serve is called before Accept.
	ErrNotAccepted = errors.New("consumer: connection not accepted")

	// ErrHandshakeAborted is returned when the watchdog could not be started.
	ErrHandshakeAborted = errors.New("consumer: handshake aborted")

	// ErrConnectionClosed is returned when sending on a connection that is not open.
	ErrConnectionClosed = errors.New("consumer: connection is closed")

	// ErrDecode wraps payloads a codec could not decode.
	ErrDecode = errors.New("consumer: decode failed")
)
