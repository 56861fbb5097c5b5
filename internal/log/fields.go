// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "operation"

	// HTSP fields
	FieldMethod    = "method"
	FieldSeq       = "seq"
	FieldServer    = "server"
	FieldChannelID = "channel_id"
	FieldEventID   = "event_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Timing fields
	FieldTimeout = "timeout"
	FieldElapsed = "elapsed"

	// Path fields
	FieldPath = "path"
)
