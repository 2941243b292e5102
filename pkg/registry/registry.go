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

// Package registry holds the shared standard field descriptor catalog
// and the per-manifest descriptor namespaces built on top of it.
//
// The standard catalog is process-wide, read-mostly state: seeded once
// at startup and append-only afterwards. Manifest code never mutates it
// directly; manifests reference catalog entries through resolve and
// alias operations on their own namespace.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/units"
)

var (
	// ErrDuplicateName is returned when a descriptor name is redeclared
	// with a different shape inside one namespace.
	ErrDuplicateName = errors.New("descriptor name already registered with a different shape")

	// ErrInvalidName is returned for names outside the identifier grammar.
	ErrInvalidName = errors.New("descriptor name violates naming rules")

	// ErrUnknownStandard is returned when an alias references a
	// descriptor absent from the standard catalog.
	ErrUnknownStandard = errors.New("not a registered standard descriptor")

	// ErrAliasQuantity is returned when an alias tries to move a
	// standard descriptor into a different quantity family.
	ErrAliasQuantity = errors.New("alias unit changes the standard descriptor's quantity family")

	// ErrInvalidDescriptor is returned for descriptors with an unknown
	// value type, an unknown unit, or a unit on a unit-less type.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// reservedSubstrings are rejected anywhere in a descriptor name,
// case-insensitively. They are claimed by the platform itself.
//
//nolint:gochecknoglobals // fixed policy list
var reservedSubstrings = []string{"reserved", "internal", "platform"}

// ValidateName checks a descriptor name against the identifier grammar:
// a letter followed by letters, digits or underscores, no "$", and no
// platform-reserved substrings.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, namePattern)
	}

	lower := strings.ToLower(name)
	for _, sub := range reservedSubstrings {
		if strings.Contains(lower, sub) {
			return fmt.Errorf("%w: %q contains reserved substring %q", ErrInvalidName, name, sub)
		}
	}

	return nil
}

func validateShape(d models.FieldDescriptor) error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if !d.ValueType.Valid() {
		return fmt.Errorf("%w: %q has unknown value type %q", ErrInvalidDescriptor, d.Name, d.ValueType)
	}

	if d.Unit != "" {
		if !d.ValueType.Numeric() {
			return fmt.Errorf("%w: %q is %s and cannot carry unit %q",
				ErrInvalidDescriptor, d.Name, d.ValueType, d.Unit)
		}

		if !units.Known(d.Unit) {
			return fmt.Errorf("%w: %q has unknown unit %q", ErrInvalidDescriptor, d.Name, d.Unit)
		}
	}

	return nil
}

// Validate checks a descriptor's shape (name grammar, value type,
// unit) without registering it anywhere.
func Validate(d models.FieldDescriptor) error {
	return validateShape(d)
}

// Catalog is the shared standard descriptor catalog.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]models.FieldDescriptor
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]models.FieldDescriptor)}
}

// RegisterStandard adds a descriptor to the shared catalog. Re-adding
// an identical descriptor is a no-op; changing the shape of an existing
// name fails with ErrDuplicateName.
func (c *Catalog) RegisterStandard(name string, valueType models.ValueType, unit models.Unit) (models.FieldDescriptor, error) {
	d := models.FieldDescriptor{
		Name:       name,
		ValueType:  valueType,
		Unit:       unit,
		IsStandard: true,
	}

	if err := validateShape(d); err != nil {
		return models.FieldDescriptor{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[name]; ok {
		if !existing.Equal(d) {
			return models.FieldDescriptor{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}

		return existing, nil
	}

	c.entries[name] = d

	return d, nil
}

// ResolveStandard looks up a descriptor in the shared catalog.
func (c *Catalog) ResolveStandard(name string) (models.FieldDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.entries[name]

	return d, ok
}

// Alias derives a typed/unit variant of a standard descriptor. The
// variant keeps the standard's semantic identity (AliasOf back-reference
// and canonical name) and may only vary the value type and, within the
// same quantity family, the unit. A unit-less standard stays unit-less:
// attaching a unit would change what the name measures.
func (c *Catalog) Alias(standard models.FieldDescriptor, valueType models.ValueType, unit models.Unit) (models.FieldDescriptor, error) {
	registered, ok := c.ResolveStandard(standard.Name)
	if !ok || !registered.Equal(standard) {
		return models.FieldDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownStandard, standard.Name)
	}

	if unit == "" {
		unit = standard.Unit
	}

	switch {
	case !valueType.Numeric():
		// Unit-less variants drop the unit entirely.
		unit = ""
	case standard.Unit == "" && unit != "":
		return models.FieldDescriptor{}, fmt.Errorf("%w: %q is unit-less, cannot attach %q",
			ErrAliasQuantity, standard.Name, unit)
	case standard.Unit != "" && unit != standard.Unit && !units.Compatible(standard.Unit, unit):
		return models.FieldDescriptor{}, fmt.Errorf("%w: %q -> %q", ErrAliasQuantity, standard.Unit, unit)
	}

	d := models.FieldDescriptor{
		Name:       standard.Name,
		ValueType:  valueType,
		Unit:       unit,
		IsStandard: true,
		AliasOf:    standard.Name,
	}

	if err := validateShape(d); err != nil {
		return models.FieldDescriptor{}, err
	}

	return d, nil
}

// Names returns the catalog's descriptor names, for diagnostics.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	return names
}
