package registry

import (
	"fmt"

	"github.com/carverauto/fieldpipe/pkg/models"
)

// Namespace is one manifest's declared descriptor set. Every descriptor
// a manifest can emit must be reachable through Register, Resolve or
// Alias calls on its namespace; the runtime rejects fields whose
// descriptors were never declared here.
type Namespace struct {
	catalog *Catalog
	entries map[string]models.FieldDescriptor
	order   []string
}

// NewNamespace returns an empty namespace backed by the given standard
// catalog.
func NewNamespace(catalog *Catalog) *Namespace {
	return &Namespace{
		catalog: catalog,
		entries: make(map[string]models.FieldDescriptor),
	}
}

// Register adds a descriptor to the namespace. Registering an identical
// descriptor twice is a no-op; registering the same name with a
// different shape fails with ErrDuplicateName.
func (n *Namespace) Register(d models.FieldDescriptor) (models.FieldDescriptor, error) {
	if err := validateShape(d); err != nil {
		return models.FieldDescriptor{}, err
	}

	if existing, ok := n.entries[d.Name]; ok {
		if !existing.Equal(d) {
			return models.FieldDescriptor{}, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}

		return existing, nil
	}

	n.entries[d.Name] = d
	n.order = append(n.order, d.Name)

	return d, nil
}

// ResolveStandard looks up a standard catalog descriptor and records it
// in the namespace so emitted fields may reference it.
func (n *Namespace) ResolveStandard(name string) (models.FieldDescriptor, error) {
	d, ok := n.catalog.ResolveStandard(name)
	if !ok {
		return models.FieldDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownStandard, name)
	}

	return n.Register(d)
}

// Alias derives a typed variant of a standard descriptor and records it
// in the namespace.
func (n *Namespace) Alias(standard models.FieldDescriptor, valueType models.ValueType, unit models.Unit) (models.FieldDescriptor, error) {
	d, err := n.catalog.Alias(standard, valueType, unit)
	if err != nil {
		return models.FieldDescriptor{}, err
	}

	return n.Register(d)
}

// Contains reports whether d was declared in this namespace, attribute
// for attribute.
func (n *Namespace) Contains(d models.FieldDescriptor) bool {
	existing, ok := n.entries[d.Name]

	return ok && existing.Equal(d)
}

// Declared returns the namespace's descriptors in registration order.
func (n *Namespace) Declared() []models.FieldDescriptor {
	out := make([]models.FieldDescriptor, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.entries[name])
	}

	return out
}

// Len returns the number of declared descriptors.
func (n *Namespace) Len() int {
	return len(n.entries)
}
