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

package manifest

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/registry"
)

const (
	normalizeFn   = "normalize"
	descriptorsFn = "get_field_descriptors"
)

// Loader instantiates manifests from Starlark source: exactly one
// loaded Manifest per device type, contract verified, declared
// descriptor set validated for self-consistency. Module top-level code
// runs under the same budgets and capability traps as invocations.
type Loader struct {
	catalog *registry.Catalog
	limits  models.ExecutionLimits
	log     logger.Logger
}

// NewLoader builds a Loader. A nil catalog means the process-wide
// standard catalog.
func NewLoader(catalog *registry.Catalog, limits models.ExecutionLimits, log logger.Logger) *Loader {
	if catalog == nil {
		catalog = registry.DefaultCatalog()
	}

	limits.Normalize()

	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Loader{catalog: catalog, limits: limits, log: log}
}

// Load executes manifest source as a Starlark module, verifies the
// two-function contract and builds the declared descriptor namespace.
// Globals are frozen on return, so the Manifest is safe for concurrent
// invocations.
func (l *Loader) Load(ctx context.Context, info models.ManifestInfo, source string) (*Manifest, error) {
	if len(source) > l.limits.MaxSourceBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrSourceTooLarge, len(source), l.limits.MaxSourceBytes)
	}

	env := Builtins(l.catalog)
	thread, trap := NewThread("load:"+info.DeviceType, l.limits)
	filename := info.DeviceType + ".star"

	var globals starlark.StringDict

	_, err := CallWithBudget(ctx, thread, trap, l.limits, func() (starlark.Value, error) {
		g, execErr := starlark.ExecFileOptions(fileOptions, thread, filename, source, env)
		globals = g

		return starlark.None, execErr
	})

	if v := trap.Violation(); v != "" {
		return nil, fmt.Errorf("%w: %s", ErrLoadViolation, v)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}

	normalize, err := contractFunction(globals, normalizeFn, 1)
	if err != nil {
		return nil, err
	}

	describe, err := contractFunction(globals, descriptorsFn, 0)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		info:      info,
		normalize: normalize,
		describe:  describe,
	}

	if err := l.loadDeclared(ctx, m); err != nil {
		return nil, err
	}

	l.log.Debug().
		Str("device_type", info.DeviceType).
		Str("manifest_id", info.ID).
		Int("descriptors", len(m.declared)).
		Msg("Manifest loaded")

	return m, nil
}

// contractFunction verifies one contract function: present, a plain
// function, fixed arity, no varargs or kwargs.
func contractFunction(globals starlark.StringDict, name string, arity int) (*starlark.Function, error) {
	v, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s()", ErrMalformedManifest, name)
	}

	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, not a function", ErrMalformedManifest, name, v.Type())
	}

	if fn.NumParams() != arity || fn.HasVarargs() || fn.HasKwargs() {
		return nil, fmt.Errorf("%w: %s must take exactly %d parameter(s)", ErrMalformedManifest, name, arity)
	}

	return fn, nil
}

// loadDeclared runs get_field_descriptors once under the sandbox
// budgets and registers every returned descriptor into a fresh
// namespace, rejecting redefinitions.
func (l *Loader) loadDeclared(ctx context.Context, m *Manifest) error {
	thread, trap := NewThread("describe:"+m.info.DeviceType, l.limits)

	result, err := CallWithBudget(ctx, thread, trap, l.limits, func() (starlark.Value, error) {
		return starlark.Call(thread, m.describe, nil, nil)
	})

	if v := trap.Violation(); v != "" {
		return fmt.Errorf("%w: %s", ErrLoadViolation, v)
	}

	if err != nil {
		return fmt.Errorf("%w: %s failed: %v", ErrMalformedManifest, descriptorsFn, err)
	}

	iter := starlark.Iterate(result)
	if iter == nil {
		return fmt.Errorf("%w: %s returned %s, not a sequence", ErrMalformedManifest, descriptorsFn, result.Type())
	}
	defer iter.Done()

	ns := registry.NewNamespace(l.catalog)

	var elem starlark.Value
	for iter.Next(&elem) {
		d, ok := DescriptorFromValue(elem)
		if !ok {
			return fmt.Errorf("%w: %s returned a %s, want field_descriptor",
				ErrInconsistentDescriptors, descriptorsFn, elem.Type())
		}

		if _, err := ns.Register(d); err != nil {
			return fmt.Errorf("%w: %v", ErrInconsistentDescriptors, err)
		}
	}

	if ns.Len() == 0 {
		return ErrNoDescriptors
	}

	m.namespace = ns
	m.declared = ns.Declared()

	return nil
}
