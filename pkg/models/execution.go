package models

import "time"

// InvocationState tracks one sandboxed call through its lifecycle.
type InvocationState string

const (
	StateIdle       InvocationState = "idle"
	StateLoaded     InvocationState = "loaded"
	StateRunning    InvocationState = "running"
	StateCompleted  InvocationState = "completed"
	StateFailed     InvocationState = "failed"
	StateTimedOut   InvocationState = "timed_out"
	StateTerminated InvocationState = "terminated"
)

// FailureKind classifies why an invocation did not complete. The
// taxonomy is closed; callers switch on it to decide disposition
// (drop the message, flag the manifest, alert).
type FailureKind string

const (
	FailureMalformedManifest   FailureKind = "malformed_manifest"
	FailureParse               FailureKind = "parse_error"
	FailureDescriptorMismatch  FailureKind = "descriptor_mismatch"
	FailureEmptyResult         FailureKind = "empty_result"
	FailureCapabilityViolation FailureKind = "capability_violation"
	FailureIncompatibleUnit    FailureKind = "incompatible_unit"
	FailureUnsupportedType     FailureKind = "unsupported_type"
	FailureTimeout             FailureKind = "timeout"
	FailureInternal            FailureKind = "internal_error"
)

// Failure carries the classified reason an invocation ended in a
// non-completed state.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// ExecutionResult is the outcome of one normalize invocation: either a
// non-empty ordered field sequence (State == StateCompleted) or a
// classified failure. A completed result with zero fields never leaves
// the runtime; emptiness is classified as FailureEmptyResult before the
// result is returned.
type ExecutionResult struct {
	State   InvocationState `json:"state"`
	Fields  []Field         `json:"fields,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
	Steps   uint64          `json:"steps"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Completed reports whether the invocation produced a usable result.
func (r *ExecutionResult) Completed() bool {
	return r.State == StateCompleted
}
