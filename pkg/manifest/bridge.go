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
	"errors"
	"fmt"
	"math"

	sjson "go.starlark.net/lib/json"
	smath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/registry"
	"github.com/carverauto/fieldpipe/pkg/units"
)

var errCoerce = errors.New("value cannot be coerced to declared type")

// descriptorValue wraps a FieldDescriptor as an immutable Starlark
// value manifest code can hold and pass back into field().
type descriptorValue struct {
	d models.FieldDescriptor
}

func (v descriptorValue) String() string {
	return fmt.Sprintf("field_descriptor(%s: %s)", v.d.Name, v.d.ValueType)
}

func (descriptorValue) Type() string { return "field_descriptor" }

func (descriptorValue) Freeze() {}

func (descriptorValue) Truth() starlark.Bool { return starlark.True }

func (v descriptorValue) Hash() (uint32, error) {
	return starlark.String(v.d.Name + "\x00" + string(v.d.ValueType) + "\x00" + string(v.d.Unit)).Hash()
}

func (v descriptorValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.d.Name), nil
	case "type":
		return starlark.String(v.d.ValueType), nil
	case "unit":
		if v.d.Unit == "" {
			return starlark.None, nil
		}

		return starlark.String(v.d.Unit), nil
	case "is_standard":
		return starlark.Bool(v.d.IsStandard), nil
	default:
		return nil, nil
	}
}

func (descriptorValue) AttrNames() []string {
	return []string{"is_standard", "name", "type", "unit"}
}

// fieldValue wraps a well-formed Field. Only field() produces these;
// normalize must return a list of them.
type fieldValue struct {
	f models.Field
}

func (v fieldValue) String() string {
	return fmt.Sprintf("field(%s=%s)", v.f.Descriptor.Name, v.f.Value)
}

func (fieldValue) Type() string { return "field" }

func (fieldValue) Freeze() {}

func (fieldValue) Truth() starlark.Bool { return starlark.True }

func (fieldValue) Hash() (uint32, error) {
	return 0, errors.New("unhashable type: field")
}

func (v fieldValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "descriptor":
		return descriptorValue{d: v.f.Descriptor}, nil
	case "value":
		return toStarlark(v.f.Value), nil
	default:
		return nil, nil
	}
}

func (fieldValue) AttrNames() []string {
	return []string{"descriptor", "value"}
}

func toStarlark(v models.TypedValue) starlark.Value {
	switch v.Type() {
	case models.TypeBoolean:
		return starlark.Bool(v.Bool())
	case models.TypeDouble, models.TypeFloat:
		return starlark.Float(v.Double())
	case models.TypeInteger, models.TypeLong:
		return starlark.MakeInt64(v.Long())
	case models.TypeString:
		return starlark.String(v.Str())
	default:
		return starlark.None
	}
}

// toTypedValue coerces a Starlark value into the descriptor's declared
// scalar type. Coercion is strict: booleans for Boolean, strings for
// String, ints or floats for the numeric types. Manifest authors parse
// and convert inside normalize; the engine never guesses.
func toTypedValue(name string, vt models.ValueType, v starlark.Value) (models.TypedValue, error) {
	switch vt {
	case models.TypeBoolean:
		if b, ok := v.(starlark.Bool); ok {
			return models.BooleanValue(bool(b)), nil
		}

	case models.TypeString:
		if s, ok := v.(starlark.String); ok {
			return models.StringValue(string(s)), nil
		}

	case models.TypeDouble:
		if f, ok := starlark.AsFloat(v); ok {
			return models.DoubleValue(f), nil
		}

	case models.TypeFloat:
		if f, ok := starlark.AsFloat(v); ok {
			return models.FloatValue(float32(f)), nil
		}

	case models.TypeInteger:
		if i, ok := v.(starlark.Int); ok {
			n, exact := i.Int64()
			if !exact || n < math.MinInt32 || n > math.MaxInt32 {
				return models.TypedValue{}, fmt.Errorf("%w: %s overflows Integer", errCoerce, i)
			}

			return models.IntegerValue(int32(n)), nil
		}

	case models.TypeLong:
		if i, ok := v.(starlark.Int); ok {
			n, exact := i.Int64()
			if !exact {
				return models.TypedValue{}, fmt.Errorf("%w: %s overflows Long", errCoerce, i)
			}

			return models.LongValue(n), nil
		}
	}

	return models.TypedValue{}, fmt.Errorf("%w: field %q declared %s, got %s",
		errCoerce, name, vt, v.Type())
}

func builtinDescriptor(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, typeName, unit string

	if err := starlark.UnpackArgs("descriptor", args, kwargs,
		"name", &name, "type", &typeName, "unit?", &unit); err != nil {
		return nil, err
	}

	d := models.FieldDescriptor{
		Name:      name,
		ValueType: models.ValueType(typeName),
		Unit:      models.Unit(unit),
	}

	if err := registry.Validate(d); err != nil {
		return nil, err
	}

	return descriptorValue{d: d}, nil
}

func makeStandard(catalog *registry.Catalog) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string

		if err := starlark.UnpackArgs("standard", args, kwargs, "name", &name); err != nil {
			return nil, err
		}

		d, ok := catalog.ResolveStandard(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", registry.ErrUnknownStandard, name)
		}

		return descriptorValue{d: d}, nil
	}
}

func makeAlias(catalog *registry.Catalog) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			standard       starlark.Value
			typeName, unit string
		)

		if err := starlark.UnpackArgs("alias", args, kwargs,
			"standard", &standard, "type", &typeName, "unit?", &unit); err != nil {
			return nil, err
		}

		dv, ok := standard.(descriptorValue)
		if !ok {
			return nil, fmt.Errorf("alias: standard must be a field_descriptor, got %s", standard.Type())
		}

		d, err := catalog.Alias(dv.d, models.ValueType(typeName), models.Unit(unit))
		if err != nil {
			return nil, err
		}

		return descriptorValue{d: d}, nil
	}
}

func builtinField(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		descriptor, value starlark.Value
		unit              string
	)

	if err := starlark.UnpackArgs("field", args, kwargs,
		"descriptor", &descriptor, "value", &value, "unit?", &unit); err != nil {
		return nil, err
	}

	dv, ok := descriptor.(descriptorValue)
	if !ok {
		return nil, fmt.Errorf("field: descriptor must be a field_descriptor, got %s", descriptor.Type())
	}

	tv, err := toTypedValue(dv.d.Name, dv.d.ValueType, value)
	if err != nil {
		return nil, err
	}

	if unit != "" {
		if dv.d.Unit == "" {
			return nil, fmt.Errorf("%w: descriptor %q is unit-less but input unit %q was given",
				units.ErrIncompatibleUnit, dv.d.Name, unit)
		}

		tv, err = units.Convert(tv, models.Unit(unit), dv.d.Unit)
		if err != nil {
			return nil, err
		}
	}

	f, err := models.NewField(dv.d, tv)
	if err != nil {
		return nil, err
	}

	return fieldValue{f: f}, nil
}

// Builtins returns the predeclared environment handed to manifest code:
// the complete capability surface of the sandbox.
func Builtins(catalog *registry.Catalog) starlark.StringDict {
	return starlark.StringDict{
		"descriptor": starlark.NewBuiltin("descriptor", builtinDescriptor),
		"standard":   starlark.NewBuiltin("standard", makeStandard(catalog)),
		"alias":      starlark.NewBuiltin("alias", makeAlias(catalog)),
		"field":      starlark.NewBuiltin("field", builtinField),
		"json":       sjson.Module,
		"math":       smath.Module,
	}
}

// FieldFromValue extracts the wrapped Field from a value produced by
// the field() builtin. The second return is false for any other value.
func FieldFromValue(v starlark.Value) (models.Field, bool) {
	fv, ok := v.(fieldValue)

	return fv.f, ok
}

// DescriptorFromValue extracts the wrapped FieldDescriptor from a value
// produced by descriptor(), standard() or alias().
func DescriptorFromValue(v starlark.Value) (models.FieldDescriptor, bool) {
	dv, ok := v.(descriptorValue)

	return dv.d, ok
}
