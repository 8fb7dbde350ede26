// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldConnID    = "conn_id"
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldRemote    = "remote_addr"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldWatchdog  = "watchdog"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldOutcome  = "outcome"
	FieldReason   = "reason"

	// Timing fields
	FieldInterval = "interval"
	FieldTimeout  = "timeout"
)
