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

// Package manifest defines the contract third-party transformation
// units must satisfy and loads their Starlark source into reusable,
// verified program handles.
//
// A manifest is a Starlark module that defines two functions:
//
//	normalize(raw)             -> list of field values
//	get_field_descriptors()    -> list of field descriptors
//
// The predeclared environment handed to manifest code (see Builtins)
// is its entire capability surface: descriptor construction, standard
// catalog resolution, field construction with unit conversion, and the
// Starlark json and math modules. There is no filesystem, network or
// output capability to deny at runtime because none is ever predeclared.
package manifest

import (
	"errors"

	"go.starlark.net/starlark"

	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/registry"
)

var (
	// ErrMalformedManifest is returned when a manifest does not define
	// both contract functions with compatible signatures, or fails to
	// load at all. Malformed manifests are rejected before any
	// normalize call runs.
	ErrMalformedManifest = errors.New("manifest does not satisfy the transformation contract")

	// ErrSourceTooLarge is returned when manifest source exceeds the
	// configured size ceiling.
	ErrSourceTooLarge = errors.New("manifest source exceeds size limit")

	// ErrInconsistentDescriptors is returned when the declared
	// descriptor set redefines a name with a different shape or is
	// otherwise invalid.
	ErrInconsistentDescriptors = errors.New("declared descriptor set is inconsistent")

	// ErrNoDescriptors is returned when get_field_descriptors declares
	// nothing; such a manifest can never produce output.
	ErrNoDescriptors = errors.New("manifest declares no field descriptors")

	// ErrLoadViolation is returned when manifest top-level code
	// attempts a denied capability while the module is loading.
	ErrLoadViolation = errors.New("manifest attempted a denied capability during load")
)

// Contract is the capability set a loaded transformation unit exposes
// to the platform.
type Contract interface {
	DeviceType() string
	FieldDescriptors() []models.FieldDescriptor
}

// Manifest is a loaded, verified transformation unit. Its module
// globals are frozen after load, so one Manifest may serve many
// concurrent invocations; statelessness is enforced by the interpreter,
// not trusted.
type Manifest struct {
	info      models.ManifestInfo
	namespace *registry.Namespace
	declared  []models.FieldDescriptor
	normalize *starlark.Function
	describe  *starlark.Function
}

// Info returns the manifest's platform metadata.
func (m *Manifest) Info() models.ManifestInfo { return m.info }

// DeviceType returns the device type this manifest transforms.
func (m *Manifest) DeviceType() string { return m.info.DeviceType }

// FieldDescriptors returns the complete, static set of descriptors
// normalize can possibly emit, in declaration order.
func (m *Manifest) FieldDescriptors() []models.FieldDescriptor {
	out := make([]models.FieldDescriptor, len(m.declared))
	copy(out, m.declared)

	return out
}

// Namespace returns the manifest's declared descriptor namespace, used
// by the runtime to reject undeclared descriptors post hoc.
func (m *Manifest) Namespace() *registry.Namespace { return m.namespace }

// NormalizeFunc exposes the compiled normalize function to the
// execution runtime.
func (m *Manifest) NormalizeFunc() *starlark.Function { return m.normalize }

// DescribeFunc exposes the compiled get_field_descriptors function to
// the execution runtime.
func (m *Manifest) DescribeFunc() *starlark.Function { return m.describe }
