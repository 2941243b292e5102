/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sandbox executes manifest invocations under resource and
// capability restrictions and classifies every outcome.
//
// Each invocation runs on a fresh interpreter thread through the state
// machine Idle -> Loaded -> Running -> {Completed, Failed, TimedOut,
// Terminated}. The boundary fails closed: manifests see no filesystem,
// no network and no output stream because none is predeclared; a print
// attempt trips the capability trap, the wall-clock budget cancels the
// thread externally, and the step budget bounds compute and heap
// growth. All sandbox-internal resources are released on every exit
// path.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/manifest"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/units"
)

// Runtime runs manifest invocations. It is stateless across
// invocations and safe for concurrent use.
type Runtime struct {
	limits models.ExecutionLimits
	log    logger.Logger
}

// NewRuntime builds a Runtime with the given per-invocation ceilings.
func NewRuntime(limits models.ExecutionLimits, log logger.Logger) *Runtime {
	limits.Normalize()

	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Runtime{limits: limits, log: log}
}

// Limits returns the runtime's per-invocation ceilings.
func (r *Runtime) Limits() models.ExecutionLimits { return r.limits }

// Normalize runs one normalize call against exactly one payload and
// returns the classified result. No partial field sequence ever leaves
// a non-completed invocation.
func (r *Runtime) Normalize(ctx context.Context, m *manifest.Manifest, raw string) models.ExecutionResult {
	start := time.Now()

	if len(raw) > r.limits.MaxPayloadBytes {
		return models.ExecutionResult{
			State: models.StateFailed,
			Failure: &models.Failure{
				Kind:    models.FailureInternal,
				Message: fmt.Sprintf("payload is %d bytes (limit %d)", len(raw), r.limits.MaxPayloadBytes),
			},
			Elapsed: time.Since(start),
		}
	}

	thread, trap := manifest.NewThread("normalize:"+m.DeviceType(), r.limits)

	value, err := manifest.CallWithBudget(ctx, thread, trap, r.limits, func() (starlark.Value, error) {
		return starlark.Call(thread, m.NormalizeFunc(), starlark.Tuple{starlark.String(raw)}, nil)
	})

	result := models.ExecutionResult{
		Steps:   thread.ExecutionSteps(),
		Elapsed: time.Since(start),
	}

	if state, failure := r.classify(err, thread, trap); failure != nil {
		result.State = state
		result.Failure = failure

		if state == models.StateTerminated {
			r.log.Warn().
				Str("device_type", m.DeviceType()).
				Str("violation", failure.Message).
				Msg("Manifest invocation terminated")
		}

		return result
	}

	fields, state, failure := r.collectFields(m, value)
	if failure != nil {
		result.State = state
		result.Failure = failure

		return result
	}

	result.State = models.StateCompleted
	result.Fields = fields

	return result
}

// classify maps an invocation error onto the outcome taxonomy. The
// capability trap wins over everything: a violation terminates the
// invocation regardless of whether valid fields were already produced,
// and any ambiguity about a capability attempt is treated as a
// violation, never allowed through.
//
// Timeouts and resource violations are recognized from the runtime's
// own records: the watchdog marks the trap when the wall-clock budget
// fires, and a step-budget cancellation counts only when the thread's
// step counter actually reached the limit. A manifest error that
// merely echoes payload content resembling a cancellation message
// stays an ordinary deterministic failure.
func (r *Runtime) classify(err error, thread *starlark.Thread, trap *manifest.CapabilityTrap) (models.InvocationState, *models.Failure) {
	if v := trap.Violation(); v != "" {
		return models.StateTerminated, &models.Failure{
			Kind:    models.FailureCapabilityViolation,
			Message: v,
		}
	}

	if err == nil {
		return models.StateCompleted, nil
	}

	if trap.TimedOut() || errors.Is(err, context.DeadlineExceeded) {
		return models.StateTimedOut, &models.Failure{
			Kind:    models.FailureTimeout,
			Message: "invocation exceeded its wall-clock budget",
		}
	}

	if manifest.CancelReason(err) == manifest.CancelSteps && thread.ExecutionSteps() >= r.limits.MaxSteps {
		return models.StateTerminated, &models.Failure{
			Kind:    models.FailureCapabilityViolation,
			Message: "invocation exceeded its execution step budget",
		}
	}

	msg := err.Error()

	switch {
	case errors.Is(err, units.ErrIncompatibleUnit):
		return models.StateFailed, &models.Failure{
			Kind:    models.FailureIncompatibleUnit,
			Message: msg,
		}

	case errors.Is(err, units.ErrUnsupportedType), errors.Is(err, units.ErrUnknownUnit):
		return models.StateFailed, &models.Failure{
			Kind:    models.FailureUnsupportedType,
			Message: msg,
		}

	default:
		// The manifest's own logic failed on this input. Deterministic,
		// so never retried.
		return models.StateFailed, &models.Failure{
			Kind:    models.FailureParse,
			Message: msg,
		}
	}
}

// collectFields validates the returned value: an ordered, non-empty
// sequence of field values whose descriptors all appear in the
// manifest's declared set.
func (r *Runtime) collectFields(m *manifest.Manifest, value starlark.Value) ([]models.Field, models.InvocationState, *models.Failure) {
	iter := starlark.Iterate(value)
	if iter == nil {
		return nil, models.StateFailed, &models.Failure{
			Kind:    models.FailureInternal,
			Message: fmt.Sprintf("normalize returned %s, want a sequence of fields", value.Type()),
		}
	}
	defer iter.Done()

	ns := m.Namespace()

	var (
		fields []models.Field
		elem   starlark.Value
	)

	for iter.Next(&elem) {
		if len(fields) >= r.limits.MaxFields {
			return nil, models.StateTerminated, &models.Failure{
				Kind:    models.FailureCapabilityViolation,
				Message: fmt.Sprintf("normalize produced more than %d fields", r.limits.MaxFields),
			}
		}

		f, ok := manifest.FieldFromValue(elem)
		if !ok {
			return nil, models.StateFailed, &models.Failure{
				Kind:    models.FailureInternal,
				Message: fmt.Sprintf("normalize returned a %s, want field", elem.Type()),
			}
		}

		if !ns.Contains(f.Descriptor) {
			return nil, models.StateFailed, &models.Failure{
				Kind: models.FailureDescriptorMismatch,
				Message: fmt.Sprintf("field %q was not declared by %s",
					f.Descriptor.Name, "get_field_descriptors"),
			}
		}

		fields = append(fields, f)
	}

	if len(fields) == 0 {
		// An empty result is a failure to capture data, never success.
		return nil, models.StateFailed, &models.Failure{
			Kind:    models.FailureEmptyResult,
			Message: "normalize returned no fields for a non-empty payload",
		}
	}

	return fields, models.StateCompleted, nil
}
