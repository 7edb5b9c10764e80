// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Media fields
	FieldPlatform   = "platform"
	FieldQuality    = "quality"
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldSelector   = "selector"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath      = "path"
	FieldURL       = "url"
	FieldWorkspace = "workspace"
	FieldArtifact  = "artifact"
)
