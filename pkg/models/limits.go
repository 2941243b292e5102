package models

import "time"

// ExecutionLimits are the per-invocation resource ceilings the sandbox
// enforces. Exceeding the wall-clock budget classifies the invocation
// as timed out; exceeding the step budget or emitting more than
// MaxFields fields is treated as a resource violation and terminates
// the invocation. Starlark does not meter heap allocations, so the step
// budget together with the payload and field caps serves as the memory
// ceiling.
type ExecutionLimits struct {
	Timeout         time.Duration `json:"timeout"`
	MaxSteps        uint64        `json:"max_steps"`
	MaxFields       int           `json:"max_fields"`
	MaxPayloadBytes int           `json:"max_payload_bytes"`
	MaxSourceBytes  int           `json:"max_source_bytes"`
}

const (
	defaultProductionTimeout    = 500 * time.Millisecond
	defaultCertificationTimeout = 2 * time.Second
	defaultMaxSteps             = 10_000_000
	defaultMaxFields            = 1024
	defaultMaxPayloadBytes      = 1 << 20 // 1 MiB
	defaultMaxSourceBytes       = 256 << 10
)

// DefaultExecutionLimits returns the production-traffic ceilings.
func DefaultExecutionLimits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:         defaultProductionTimeout,
		MaxSteps:        defaultMaxSteps,
		MaxFields:       defaultMaxFields,
		MaxPayloadBytes: defaultMaxPayloadBytes,
		MaxSourceBytes:  defaultMaxSourceBytes,
	}
}

// CertificationExecutionLimits returns the looser ceilings used while
// certifying a manifest against sample payloads.
func CertificationExecutionLimits() ExecutionLimits {
	l := DefaultExecutionLimits()
	l.Timeout = defaultCertificationTimeout

	return l
}

// Normalize fills zero fields with defaults so partial configs work.
func (l *ExecutionLimits) Normalize() {
	d := DefaultExecutionLimits()

	if l.Timeout <= 0 {
		l.Timeout = d.Timeout
	}

	if l.MaxSteps == 0 {
		l.MaxSteps = d.MaxSteps
	}

	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}

	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = d.MaxPayloadBytes
	}

	if l.MaxSourceBytes <= 0 {
		l.MaxSourceBytes = d.MaxSourceBytes
	}
}
