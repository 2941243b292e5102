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

// Package engine is the production execution surface: it keeps the
// active manifest per device type and runs inbound payloads through
// the sandbox one message at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/manifest"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/registry"
	"github.com/carverauto/fieldpipe/pkg/sandbox"
)

var (
	// ErrNoActiveManifest is returned when no manifest is active for a
	// device type.
	ErrNoActiveManifest = errors.New("no active manifest for device type")

	// ErrManifestUnsafe is returned for device types whose manifest was
	// flagged after a capability violation; traffic is refused pending
	// re-review.
	ErrManifestUnsafe = errors.New("manifest is flagged unsafe pending re-review")
)

// ViolationAlerter receives engine-level alerts for capability
// violations, which indicate a potentially malicious manifest rather
// than a benign bug.
type ViolationAlerter interface {
	CapabilityViolation(ctx context.Context, info models.ManifestInfo, failure *models.Failure)
}

type activeManifest struct {
	m      *manifest.Manifest
	info   models.ManifestInfo
	unsafe bool
}

// Engine holds at most one active manifest per device type. Swapping
// the active manifest never migrates in-flight invocations: runs that
// began against the old manifest finish against it, new runs pick up
// the new one.
type Engine struct {
	runtime *sandbox.Runtime
	loader  *manifest.Loader
	log     logger.Logger
	alerter ViolationAlerter

	mu     sync.RWMutex
	active map[string]*activeManifest
}

// New builds an Engine. A nil catalog means the process-wide standard
// catalog; alerter may be nil.
func New(catalog *registry.Catalog, limits models.ExecutionLimits, log logger.Logger, alerter ViolationAlerter) *Engine {
	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	limits.Normalize()

	return &Engine{
		runtime: sandbox.NewRuntime(limits, log),
		loader:  manifest.NewLoader(catalog, limits, log),
		log:     log,
		alerter: alerter,
		active:  make(map[string]*activeManifest),
	}
}

// Activate loads manifest source and makes it the active manifest for
// its device type, replacing any previous one. Loading performs the
// full contract verification; certification is assumed to have passed
// upstream.
func (e *Engine) Activate(ctx context.Context, info models.ManifestInfo, source string) error {
	m, err := e.loader.Load(ctx, info, source)
	if err != nil {
		return fmt.Errorf("activate %q: %w", info.DeviceType, err)
	}

	info.Status = models.ManifestActive

	e.mu.Lock()
	e.active[info.DeviceType] = &activeManifest{m: m, info: info}
	e.mu.Unlock()

	e.log.Info().
		Str("device_type", info.DeviceType).
		Str("manifest_id", info.ID).
		Str("version", info.Version).
		Msg("Manifest activated")

	return nil
}

// Deactivate removes the active manifest for a device type.
func (e *Engine) Deactivate(deviceType string) {
	e.mu.Lock()
	delete(e.active, deviceType)
	e.mu.Unlock()
}

// Active returns the metadata of the active manifest for a device type.
func (e *Engine) Active(deviceType string) (models.ManifestInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	am, ok := e.active[deviceType]
	if !ok {
		return models.ManifestInfo{}, false
	}

	return am.info, true
}

// Normalize runs exactly one payload through the device type's active
// manifest. Failures are surfaced in the result and the message is
// never stored or retried by the engine; retry policy belongs to the
// ingestion collaborator. A capability violation flags the manifest
// unsafe and raises an engine-level alert.
func (e *Engine) Normalize(ctx context.Context, deviceType, payload string) (models.ExecutionResult, error) {
	e.mu.RLock()
	am, ok := e.active[deviceType]
	unsafe := ok && am.unsafe
	e.mu.RUnlock()

	if !ok {
		return models.ExecutionResult{}, fmt.Errorf("%w: %q", ErrNoActiveManifest, deviceType)
	}

	if unsafe {
		return models.ExecutionResult{}, fmt.Errorf("%w: %q", ErrManifestUnsafe, deviceType)
	}

	result := e.runtime.Normalize(ctx, am.m, payload)

	if result.Failure != nil && result.Failure.Kind == models.FailureCapabilityViolation {
		e.flagUnsafe(ctx, am, result.Failure)
	}

	return result, nil
}

func (e *Engine) flagUnsafe(ctx context.Context, am *activeManifest, failure *models.Failure) {
	e.mu.Lock()
	current, ok := e.active[am.info.DeviceType]
	if ok && current == am && !current.unsafe {
		current.unsafe = true
		current.info.Status = models.ManifestUnsafe
	}
	info := am.info
	e.mu.Unlock()

	info.Status = models.ManifestUnsafe

	e.log.Error().
		Str("device_type", info.DeviceType).
		Str("manifest_id", info.ID).
		Str("violation", failure.Message).
		Msg("Manifest flagged unsafe after capability violation")

	if e.alerter != nil {
		e.alerter.CapabilityViolation(ctx, info, failure)
	}
}
